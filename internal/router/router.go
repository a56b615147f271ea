// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/superta-auth/internal/handler"
	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/middleware"
	"github.com/iliyamo/superta-auth/internal/utils"
)

// RegisterRoutes registers the unauthenticated process endpoints: the
// banner, the health check and the prometheus scrape.
func RegisterRoutes(e *echo.Echo, m *metrics.Registry) {
	e.GET("/", handler.Root)
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(m.Reg, promhttp.HandlerOpts{Registry: m.Reg})))
}

// Limits are the rate limiters applied to /api.  General covers every
// route; Sensitive is added on the routes that send email or check
// credentials.
type Limits struct {
	General   echo.MiddlewareFunc
	Sensitive echo.MiddlewareFunc
}

// RegisterAPI registers the public /api routes used by the front end.  The
// two polling reads are served through the response cache.
func RegisterAPI(e *echo.Echo, u *handler.UserHandler, t *handler.TokenHandler, cache *middleware.ResponseCache, lim Limits) *echo.Group {
	g := e.Group("/api", lim.General)
	cached := cache.Middleware()

	g.POST("/check-email", u.CheckEmail)
	g.POST("/users", u.SaveProfile)
	g.GET("/users/:uid", u.GetProfile, cached)
	g.DELETE("/users/:email", u.DeleteProfile)
	g.POST("/logins", u.RecordLogin)
	g.POST("/logout", u.RecordLogout)

	g.POST("/send-verification", t.SendVerification, lim.Sensitive)
	g.GET("/verify-email", t.VerifyEmail)
	g.GET("/verification-status/:uid", t.VerificationStatus, cached)
	g.POST("/forgot-password", t.ForgotPassword, lim.Sensitive)
	g.POST("/reset-password", t.ResetPassword, lim.Sensitive)
	g.POST("/check-password", handler.CheckPassword)
	return g
}

// RegisterAdmin registers the operator routes on api.  Everything except
// the login requires an ADMIN token; the debug routes exist only when
// debug is true.
func RegisterAdmin(api *echo.Group, a *handler.AdminHandler, lim Limits, debug bool) {
	api.POST("/admin/login", a.Login, lim.Sensitive)

	gate := []echo.MiddlewareFunc{middleware.JWTAuth(a.Cfg.JWTSecret), middleware.RequireRole(utils.RoleAdmin)}

	admin := api.Group("/admin", gate...)
	admin.GET("/users", a.ListUsers)

	if debug {
		dbg := api.Group("/debug", gate...)
		dbg.POST("/delete-user", a.DebugDeleteUser)
	}
}
