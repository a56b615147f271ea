package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/middleware"
	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/repository"
	"github.com/iliyamo/superta-auth/internal/service"
	"github.com/iliyamo/superta-auth/internal/utils"
)

// UserHandler serves profile, email-availability and login audit endpoints.
type UserHandler struct {
	Accounts Accounts
	Cache    Invalidator
	Log      *zap.Logger
	Timeout  time.Duration
}

func NewUserHandler(a Accounts, cache Invalidator, log *zap.Logger, timeout time.Duration) *UserHandler {
	if cache == nil {
		cache = noCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{Accounts: a, Cache: cache, Log: log, Timeout: timeout}
}

// ----- DTOs -----

type emailReq struct {
	Email string `json:"email" validate:"required"`
}

type saveProfileReq struct {
	UID         string `json:"uid" validate:"required"`
	Email       string `json:"email" validate:"required"`
	Country     string `json:"country"`
	Institution string `json:"institution"`
}

type auditReq struct {
	UID   string `json:"uid" validate:"required"`
	Email string `json:"email" validate:"required"`
}

// bindValid binds the body into req and runs the validator.  Any failure is
// a client error.
func bindValid(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return err
	}
	return c.Validate(req)
}

// CheckEmail: POST /api/check-email -> {available}
func (h *UserHandler) CheckEmail(c echo.Context) error {
	var req emailReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email is required"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	ok, err := h.Accounts.EmailAvailable(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		return internalError(c, h.Log, "check email failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": ok})
}

// SaveProfile: POST /api/users
func (h *UserHandler) SaveProfile(c echo.Context) error {
	var req saveProfileReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing required fields"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	res, err := h.Accounts.UpsertProfile(ctx, service.ProfileInput{
		UID:         req.UID,
		Email:       strings.TrimSpace(req.Email),
		Country:     req.Country,
		Institution: req.Institution,
		IP:          utils.ClientIP(c),
	})
	if err != nil {
		return internalError(c, h.Log, "save profile failed", err)
	}
	stale := []string{profilePath(req.UID)}
	for _, uid := range res.RemovedUIDs {
		stale = append(stale, profilePath(uid))
	}
	h.Cache.Invalidate(ctx, stale...)

	middleware.Logger(c, h.Log).Info("profile saved",
		zap.String("uid", req.UID),
		zap.Int64("matched", res.MatchedCount),
		zap.Int64("modified", res.ModifiedCount),
		zap.Int64("upserted", res.UpsertedCount))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User saved/updated", "result": res})
}

// GetProfile: GET /api/users/:uid -> {success, user}
func (h *UserHandler) GetProfile(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "UID is required"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	p, err := h.Accounts.Profile(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "User not found"})
	}
	if err != nil {
		return internalError(c, h.Log, "get profile failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "user": p})
}

// DeleteProfile: DELETE /api/users/:email.  Only the profile document is
// removed; the identity account is the client's business.
func (h *UserHandler) DeleteProfile(c echo.Context) error {
	email := strings.TrimSpace(c.Param("email"))
	if email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email is required"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	// the uid is needed to drop the cached profile
	p, lookupErr := h.Accounts.ProfileByEmail(ctx, email)

	res, err := h.Accounts.DeleteByEmail(ctx, email)
	if err != nil {
		return internalError(c, h.Log, "delete profile failed", err)
	}
	if lookupErr == nil {
		h.Cache.Invalidate(ctx, profilePath(p.UID))
	}
	middleware.Logger(c, h.Log).Info("profile delete", zap.String("email", email), zap.Int64("deleted", res.DeletedCount))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "User deleted if existed", "result": res})
}

// RecordLogin: POST /api/logins
func (h *UserHandler) RecordLogin(c echo.Context) error {
	return h.recordAudit(c, model.ActionLogin)
}

// RecordLogout: POST /api/logout
func (h *UserHandler) RecordLogout(c echo.Context) error {
	return h.recordAudit(c, model.ActionLogout)
}

func (h *UserHandler) recordAudit(c echo.Context, action string) error {
	var req auditReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Missing uid or email"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Accounts.RecordAudit(ctx, req.UID, req.Email, utils.ClientIP(c), action); err != nil {
		return internalError(c, h.Log, "record "+action+" failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
