package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// RealIP resolves the client IP and stores it under "real_ip".
// CF-Connecting-IP wins over the left-most X-Forwarded-For entry;
// c.ClientIP() is the fallback.
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ip := headerIP(c, "CF-Connecting-IP"); ip != "" {
			c.Set("real_ip", ip)
			c.Next()
			return
		}
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				c.Set("real_ip", ip.String())
				c.Next()
				return
			}
		}
		c.Set("real_ip", c.ClientIP())
		c.Next()
	}
}

func headerIP(c *gin.Context, header string) string {
	v := strings.TrimSpace(c.GetHeader(header))
	if v == "" {
		return ""
	}
	ip := net.ParseIP(v)
	if ip == nil {
		return ""
	}
	return ip.String()
}
