package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/superta-auth/internal/metrics"
	"github.com/iliyamo/superta-auth/internal/model"
	"github.com/iliyamo/superta-auth/internal/queue"
)

// Auditor appends records to the logins collection and mirrors them to the
// broker.
type Auditor struct {
	store   AuditStore
	pub     Publisher
	metrics *metrics.Registry
	log     *zap.Logger
	now     func() time.Time
}

func NewAuditor(d Deps) *Auditor {
	d = withDefaults(d)
	return &Auditor{store: d.Audit, pub: d.Publisher, metrics: d.Metrics, log: d.Log, now: d.Now}
}

// Record writes one audit entry.  Only the database write can fail the
// call; publishing is best effort.
func (a *Auditor) Record(ctx context.Context, uid, email, ip, action string) error {
	rec := model.AuditRecord{
		UID:       uid,
		Email:     email,
		IP:        ip,
		Action:    action,
		Timestamp: model.Timestamp(a.now()),
	}
	if err := a.store.Insert(ctx, rec); err != nil {
		return err
	}
	a.metrics.AuditEventsTotal.WithLabelValues(action).Inc()

	if err := a.pub.PublishAudit(ctx, queue.AuditEvent(rec)); err != nil {
		a.log.Warn("audit event not published", zap.String("action", action), zap.Error(err))
	}
	return nil
}
