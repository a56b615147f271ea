// Package handler holds the HTTP handlers of the API.  Handlers bind and
// validate the request, call one service operation under a timeout and map
// the result to a JSON response.  Errors are always {"error": "..."}; 500
// responses never carry internal details, those go to the log.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/middleware"
	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/repository"
	"github.com/iliyamo/superta-auth/internal/service"
)

// Accounts is implemented by service.AccountService.
type Accounts interface {
	UpsertProfile(ctx context.Context, in service.ProfileInput) (repository.UpsertResult, error)
	Profile(ctx context.Context, uid string) (model.Profile, error)
	ProfileByEmail(ctx context.Context, email string) (model.Profile, error)
	DeleteByEmail(ctx context.Context, email string) (repository.DeleteResult, error)
	RecordAudit(ctx context.Context, uid, email, ip, action string) error
	EmailAvailable(ctx context.Context, email string) (bool, error)
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	ForceDelete(ctx context.Context, email string) (repository.DeleteResult, error)
}

// Tokens is implemented by service.TokenService.
type Tokens interface {
	IssueVerification(ctx context.Context, uid, email string) error
	RedeemVerification(ctx context.Context, token string) (model.VerificationToken, error)
	VerificationStatus(ctx context.Context, uid string) (bool, string, error)
	IssueReset(ctx context.Context, email, ip string) error
	RedeemReset(ctx context.Context, token, newPassword, ip string) error
}

// Invalidator drops cached GET responses; *middleware.ResponseCache.
type Invalidator interface {
	Invalidate(ctx context.Context, paths ...string)
}

type noCache struct{}

func (noCache) Invalidate(context.Context, ...string) {}

const defaultTimeout = 10 * time.Second

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(c.Request().Context(), d)
}

// internalError logs err with the request-scoped logger and answers with a
// generic 500.
func internalError(c echo.Context, log *zap.Logger, msg string, err error) error {
	middleware.Logger(c, log).Error(msg, zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
}

func profilePath(uid string) string { return "/api/users/" + uid }

func statusPath(uid string) string { return "/api/verification-status/" + uid }
