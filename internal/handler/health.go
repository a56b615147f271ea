package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Root answers the plain-text liveness banner the front end's proxy probes.
func Root(c echo.Context) error {
	return c.String(http.StatusOK, "API Server is running")
}

// Health is the load-balancer check.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
