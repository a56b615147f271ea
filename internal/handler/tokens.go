package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/middleware"
	"github.com/iliyamo/superta-auth/internal/password"
	"github.com/iliyamo/superta-auth/internal/service"
	"github.com/iliyamo/superta-auth/internal/utils"
)

// resetSentMessage is returned by forgot-password whether or not the email
// is registered.
const resetSentMessage = "If that email exists, a reset link has been sent."

// TokenHandler serves the email-verification and password-reset endpoints.
type TokenHandler struct {
	Tokens  Tokens
	Cache   Invalidator
	Log     *zap.Logger
	Timeout time.Duration
}

func NewTokenHandler(t Tokens, cache Invalidator, log *zap.Logger, timeout time.Duration) *TokenHandler {
	if cache == nil {
		cache = noCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TokenHandler{Tokens: t, Cache: cache, Log: log, Timeout: timeout}
}

// ----- DTOs -----

type sendVerificationReq struct {
	UID   string `json:"uid" validate:"required"`
	Email string `json:"email" validate:"required"`
}

type resetPasswordReq struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type checkPasswordReq struct {
	Password string `json:"password"`
}

type checkPasswordResp struct {
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
	Strength string `json:"strength"`
}

// SendVerification: POST /api/send-verification
func (h *TokenHandler) SendVerification(c echo.Context) error {
	var req sendVerificationReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email and UID are required"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Tokens.IssueVerification(ctx, req.UID, strings.TrimSpace(req.Email)); err != nil {
		middleware.Logger(c, h.Log).Error("send verification failed", zap.String("uid", req.UID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to send verification email"})
	}
	h.Cache.Invalidate(ctx, statusPath(req.UID))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Verification email sent"})
}

// VerifyEmail: GET /api/verify-email?token=
func (h *TokenHandler) VerifyEmail(c echo.Context) error {
	token := strings.TrimSpace(c.QueryParam("token"))
	if token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Token is required"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	tok, err := h.Tokens.RedeemVerification(ctx, token)
	switch {
	case errors.Is(err, service.ErrTokenNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Invalid verification token"})
	case errors.Is(err, service.ErrAlreadyVerified):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email has already verified"})
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Verification token has expired"})
	case err != nil:
		middleware.Logger(c, h.Log).Error("verify email failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to verify email"})
	}

	h.Cache.Invalidate(ctx, statusPath(tok.UID))
	middleware.Logger(c, h.Log).Info("email verified", zap.String("uid", tok.UID))
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Email verified successfully", "email": tok.Email})
}

// VerificationStatus: GET /api/verification-status/:uid -> {verified, email}
func (h *TokenHandler) VerificationStatus(c echo.Context) error {
	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	verified, email, err := h.Tokens.VerificationStatus(ctx, c.Param("uid"))
	if err != nil {
		middleware.Logger(c, h.Log).Error("verification status failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to check verification status"})
	}
	resp := echo.Map{"verified": verified}
	if email != "" {
		resp["email"] = email
	}
	return c.JSON(http.StatusOK, resp)
}

// ForgotPassword: POST /api/forgot-password.  The answer is identical for
// registered and unknown addresses.
func (h *TokenHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Email is required"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	if err := h.Tokens.IssueReset(ctx, strings.TrimSpace(req.Email), utils.ClientIP(c)); err != nil {
		return internalError(c, h.Log, "forgot password failed", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": resetSentMessage})
}

// ResetPassword: POST /api/reset-password
func (h *TokenHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Token and new password are required"})
	}

	ctx, cancel := withTimeout(c, h.Timeout)
	defer cancel()

	err := h.Tokens.RedeemReset(ctx, strings.TrimSpace(req.Token), req.NewPassword, utils.ClientIP(c))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "Password updated successfully"})
	case errors.Is(err, service.ErrTokenNotFound):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid or expired reset token"})
	case errors.Is(err, service.ErrTokenExpired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Reset token has expired"})
	case password.IsPolicyError(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrServerConfig):
		middleware.Logger(c, h.Log).Error("password reset without identity admin client", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Server configuration error: Cannot update password (Admin SDK missing)"})
	default:
		return internalError(c, h.Log, "reset password failed", err)
	}
}

// CheckPassword: POST /api/check-password -> {valid, error, strength}.
// Lets clients show the same verdict the reset endpoint will enforce.
func CheckPassword(c echo.Context) error {
	var req checkPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	resp := checkPasswordResp{Valid: true, Strength: password.Strength(req.Password)}
	if err := password.Check(req.Password); err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}
