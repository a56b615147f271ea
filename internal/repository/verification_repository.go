package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/iliyamo/superta-auth/internal/database"
	"github.com/iliyamo/superta-auth/internal/model"
)

// VerificationRepo persists email-verification tokens, one per uid.
type VerificationRepo struct{ C *mongo.Collection }

func NewVerificationRepo(db *mongo.Database) *VerificationRepo {
	return &VerificationRepo{C: db.Collection(database.VerificationTokensCollection)}
}

// Upsert replaces the uid's token and resets verified to false.
func (r *VerificationRepo) Upsert(ctx context.Context, tok model.VerificationToken) error {
	_, err := r.C.UpdateOne(ctx,
		bson.M{"uid": tok.UID},
		verificationUpsertUpdate(tok),
		options.UpdateOne().SetUpsert(true))
	return err
}

// verificationUpsertUpdate also drops verifiedAt; a fresh token is unverified.
func verificationUpsertUpdate(tok model.VerificationToken) bson.M {
	return bson.M{
		"$set": bson.M{
			"email":     tok.Email,
			"token":     tok.Token,
			"expiresAt": tok.ExpiresAt,
			"verified":  false,
			"createdAt": tok.CreatedAt,
		},
		"$unset": bson.M{"verifiedAt": ""},
	}
}

// GetByToken looks a token up by its hex string.
func (r *VerificationRepo) GetByToken(ctx context.Context, token string) (model.VerificationToken, error) {
	if strings.TrimSpace(token) == "" {
		return model.VerificationToken{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"token": token})
}

// GetByUID returns the uid's current token record.
func (r *VerificationRepo) GetByUID(ctx context.Context, uid string) (model.VerificationToken, error) {
	return r.findOne(ctx, bson.M{"uid": uid})
}

// MarkVerified flips verified for token.  The filter requires verified=false
// so two concurrent redemptions cannot both succeed; the loser gets ErrConflict.
func (r *VerificationRepo) MarkVerified(ctx context.Context, token string, at time.Time) error {
	res, err := r.C.UpdateOne(ctx,
		bson.M{"token": token, "verified": false},
		bson.M{"$set": bson.M{"verified": true, "verifiedAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrConflict
	}
	return nil
}

func (r *VerificationRepo) findOne(ctx context.Context, filter bson.M) (model.VerificationToken, error) {
	var v model.VerificationToken
	err := r.C.FindOne(ctx, filter).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.VerificationToken{}, ErrNotFound
	}
	return v, err
}
