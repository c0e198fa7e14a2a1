package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/models"
	appErrors "github.com/mnuel1/spacio-backend/pkg/errors"
	"github.com/mnuel1/spacio-backend/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// Auth parses the bearer token. When required is false a missing or unusable
// token leaves the request anonymous instead of rejecting it.
func Auth(tokens tokenValidator, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err == nil {
			var claims *models.JWTClaims
			if claims, err = tokens.ValidateToken(raw); err == nil {
				c.Set(ContextUserKey, claims)
				c.Next()
				return
			}
		}

		if required {
			response.Error(c, err)
			c.Abort()
			return
		}
		if raw != "" {
			_ = c.Error(err).SetType(gin.ErrorTypePrivate)
		}
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", appErrors.ErrUnauthorized
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header")
	}
	return token, nil
}

// Claims returns the request's JWT claims, if any.
func Claims(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok && claims != nil
}

// ActorID returns the authenticated user id, or "" for anonymous requests.
func ActorID(c *gin.Context) string {
	claims, _ := Claims(c)
	return claims.ActorID()
}
