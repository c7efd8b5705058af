package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	reqidmiddleware "github.com/uni-plan/timetable-api/pkg/middleware/requestid"
)

const responseMetaKey = "response_meta"

// WithResponseMeta seeds a per-request metadata map that handlers can extend
// and emit alongside the envelope, e.g. the blocking entry behind a rejected
// placement. The correlation id is filled in here; processing time is stamped
// once the handler chain returns.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		meta := metaFor(c)
		if id := reqidmiddleware.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Next()
		if _, exists := meta["processing_time_ms"]; !exists {
			meta["processing_time_ms"] = time.Since(started).Milliseconds()
		}
	}
}

// SetMeta records one metadata entry for the current request.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaFor(c)[key] = value
}

// ExtractMeta returns the metadata accumulated so far. Never nil once SetMeta
// or the middleware ran.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if v, exists := c.Get(responseMetaKey); exists {
		if meta, ok := v.(map[string]interface{}); ok {
			return meta
		}
	}
	return nil
}

func metaFor(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	if c != nil {
		c.Set(responseMetaKey, meta)
	}
	return meta
}
