package utils

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// ClientIP resolves the caller address.  The reverse proxy forwards it as the
// client_ip query parameter; otherwise X-Real-IP, then the first
// X-Forwarded-For entry, then the socket address are used.
func ClientIP(c echo.Context) string {
	if ip := strings.TrimSpace(c.QueryParam("client_ip")); ip != "" {
		return ip
	}
	h := c.Request().Header
	if ip := strings.TrimSpace(h.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	return c.RealIP()
}
