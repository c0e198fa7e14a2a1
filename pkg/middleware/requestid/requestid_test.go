package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func serveWithID(incoming string) (string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = Value(c)
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if incoming != "" {
		req.Header.Set("X-Request-ID", incoming)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return seen, w.Header().Get("X-Request-ID")
}

func TestMiddlewareKeepsWellFormedID(t *testing.T) {
	seen, header := serveWithID("edge-7f3a.01")
	assert.Equal(t, "edge-7f3a.01", seen)
	assert.Equal(t, seen, header)
}

func TestMiddlewareReplacesMissingOrHostileID(t *testing.T) {
	for _, incoming := range []string{"", "bad id\r\nX-Evil: 1", strings.Repeat("a", 65)} {
		seen, header := serveWithID(incoming)
		_, err := uuid.Parse(seen)
		assert.NoError(t, err, incoming)
		assert.Equal(t, seen, header)
	}
}
