package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/identity"
	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/utils"
)

func withDefaults(d Deps) Deps {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.NewToken == nil {
		d.NewToken = utils.NewToken
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewRegistry()
	}
	if d.Publisher == nil {
		d.Publisher = NopPublisher{}
	}
	if d.Identity == nil {
		d.Identity = identity.Unavailable{}
	}
	if d.VerificationTTL <= 0 {
		d.VerificationTTL = 24 * time.Hour
	}
	if d.ResetTTL <= 0 {
		d.ResetTTL = time.Hour
	}
	if d.SenderName == "" {
		d.SenderName = "SuperTA"
	}
	return d
}
