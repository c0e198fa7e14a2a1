package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/mnuel1/spacio-backend/internal/middleware"
)

// actorID is the caller recorded in activity logs. Anonymous callers yield "".
func actorID(c *gin.Context) string {
	return middleware.ActorID(c)
}
