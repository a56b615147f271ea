package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/iliyamo/superta-auth/internal/database"
	"github.com/iliyamo/superta-auth/internal/model"
)

// EmailLogRepo keeps a copy of every message the SMTP relay accepted.
type EmailLogRepo struct{ C *mongo.Collection }

func NewEmailLogRepo(db *mongo.Database) *EmailLogRepo {
	return &EmailLogRepo{C: db.Collection(database.SentEmailsCollection)}
}

func (r *EmailLogRepo) Insert(ctx context.Context, rec model.SentEmail) error {
	_, err := r.C.InsertOne(ctx, rec)
	return err
}
