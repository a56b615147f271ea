package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/config"
	"github.com/iliyamo/superta-auth/internal/middleware"
	"github.com/iliyamo/superta-auth/internal/utils"
)

// AdminHandler serves the operator endpoints: token login, the profile
// dump and the debug force-delete.
type AdminHandler struct {
	Cfg      config.Config
	Accounts Accounts
	Cache    Invalidator
	Log      *zap.Logger
}

func NewAdminHandler(cfg config.Config, a Accounts, cache Invalidator, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if cache == nil {
		cache = noCache{}
	}
	return &AdminHandler{Cfg: cfg, Accounts: a, Cache: cache, Log: log}
}

// ----- DTOs -----

type adminLoginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type adminLoginResp struct {
	Access tokenPart `json:"access"`
}

// Login: POST /api/admin/login.  Checks the configured admin email and
// bcrypt hash and returns a short-lived ADMIN token.
func (h *AdminHandler) Login(c echo.Context) error {
	var req adminLoginReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email != strings.ToLower(h.Cfg.AdminEmail) || !utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password) {
		middleware.Logger(c, h.Log).Warn("admin login rejected", zap.String("email", email), zap.String("ip", utils.ClientIP(c)))
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, email, utils.RoleAdmin, h.Cfg.AdminTokenTTLMin)
	if err != nil {
		return internalError(c, h.Log, "issue admin token failed", err)
	}
	return c.JSON(http.StatusOK, adminLoginResp{Access: tokenPart{Token: access.Token, Expires: access.Exp}})
}

// ListUsers: GET /api/admin/users -> {count, users}
func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Cfg.RequestTimeout)
	defer cancel()

	users, err := h.Accounts.ListProfiles(ctx)
	if err != nil {
		return internalError(c, h.Log, "list users failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(users), "users": users})
}

// DebugDeleteUser: POST /api/debug/delete-user.  Removes the identity
// account and the profile for email.
func (h *AdminHandler) DebugDeleteUser(c echo.Context) error {
	var req emailReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email is required"})
	}
	email := strings.TrimSpace(req.Email)

	ctx, cancel := withTimeout(c, h.Cfg.RequestTimeout)
	defer cancel()

	p, lookupErr := h.Accounts.ProfileByEmail(ctx, email)

	res, err := h.Accounts.ForceDelete(ctx, email)
	if err != nil {
		return internalError(c, h.Log, "force delete failed", err)
	}
	if lookupErr == nil {
		h.Cache.Invalidate(ctx, profilePath(p.UID))
	}
	middleware.Logger(c, h.Log).Warn("user force deleted", zap.String("email", email), zap.Int64("profiles", res.DeletedCount))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User deleted (if existed)"})
}
