package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/response"
)

// RequireRoles admits callers whose role is listed. When enforce is false
// anonymous requests pass and only authenticated ones are checked.
func RequireRoles(enforce bool, roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			if enforce {
				response.Error(c, appErrors.ErrUnauthorized)
				c.Abort()
				return
			}
			c.Next()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "role "+string(claims.Role)+" is not allowed here"))
			c.Abort()
			return
		}
		c.Next()
	}
}
