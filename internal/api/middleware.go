package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeaderKey)
		if requestID == "" {
			requestID = ulid.Make().String()
		}
		c.Header(RequestIDHeaderKey, requestID)
		c.Set(RequestIDContextKey, requestID)
		c.Next()
	}
}

// accessLogMiddleware writes one line per request. Series endpoints also log
// the requested period and the source that answered.
func accessLogMiddleware() gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(p gin.LogFormatterParams) string {
		var b strings.Builder
		fmt.Fprintf(&b, "%s [HTTP] %d %s %s",
			p.TimeStamp.Format("2006/01/02 15:04:05"), p.StatusCode, p.Method, p.Request.URL.Path)
		if period := p.Request.URL.Query().Get("period"); period != "" {
			fmt.Fprintf(&b, " period=%s", period)
		}
		if src, ok := p.Keys[SeriesSourceContextKey]; ok {
			fmt.Fprintf(&b, " source=%v", src)
		}
		fmt.Fprintf(&b, " latency=%s ip=%s rid=%v\n", p.Latency, p.ClientIP, p.Keys[RequestIDContextKey])
		return b.String()
	})
}

// corsMiddleware allows every origin when origins is empty or contains "*",
// otherwise echoes back only listed origins.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[strings.TrimRight(o, "/")] = true
	}

	return func(c *gin.Context) {
		switch origin := c.GetHeader("Origin"); {
		case allowAll:
			c.Header("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		}
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeaderKey)
		c.Header("Access-Control-Expose-Headers", RequestIDHeaderKey)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
