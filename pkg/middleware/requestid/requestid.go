package requestid

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// Header is the correlation header accepted from and echoed back to
	// clients.
	Header = "X-Request-ID"

	contextKey = "request_id"
)

// Middleware tags every request with a correlation id so planner actions can
// be traced through access logs and audit records. A caller-supplied id is
// kept, otherwise a fresh UUID is issued.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextKey, id)
		c.Header(Header, id)
		c.Next()
	}
}

// Value returns the correlation id of the current request, empty when the
// middleware did not run.
func Value(c *gin.Context) string {
	v, _ := c.Get(contextKey)
	id, _ := v.(string)
	return id
}
