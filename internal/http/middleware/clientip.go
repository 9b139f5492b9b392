// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the source address a request is attributed to. The
// address keys both rate limiters and is stored with each waitlist entry.
//
// With trustForwarded=true the first X-Forwarded-For hop wins, then
// X-Real-IP, then the socket peer. Those headers are client-controlled unless
// a proxy overwrites them, so only enable it behind one. With
// trustForwarded=false gin's ClientIP() is used, which honors the engine's
// trusted-proxy list.
package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

const clientIPKey = "clientIP"

// ClientIP stores the resolved source address in the Gin context.
// Place it before any middleware that calls ClientIPFrom.
func ClientIP(trustForwarded bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(clientIPKey, resolveClientIP(c, trustForwarded))
		c.Next()
	}
}

// ClientIPFrom returns the address stored by ClientIP, falling back to
// gin's ClientIP() when the middleware is not installed.
func ClientIPFrom(c *gin.Context) string {
	if v, ok := c.Get(clientIPKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return c.ClientIP()
}

func resolveClientIP(c *gin.Context, trustForwarded bool) string {
	if !trustForwarded {
		return c.ClientIP()
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xr := strings.TrimSpace(c.GetHeader("X-Real-IP")); xr != "" {
		return xr
	}
	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}
	return c.Request.RemoteAddr
}
