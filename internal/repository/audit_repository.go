package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/iliyamo/superta-auth/internal/database"
	"github.com/iliyamo/superta-auth/internal/model"
)

// AuditRepo appends login/logout/password events to `logins`.
type AuditRepo struct{ C *mongo.Collection }

func NewAuditRepo(db *mongo.Database) *AuditRepo {
	return &AuditRepo{C: db.Collection(database.LoginsCollection)}
}

// Insert appends rec.  Records are never updated or deleted.
func (r *AuditRepo) Insert(ctx context.Context, rec model.AuditRecord) error {
	_, err := r.C.InsertOne(ctx, rec)
	return err
}
