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

// ProfileUpsert carries the fields written on every profile save.
type ProfileUpsert struct {
	UID         string
	Email       string
	Country     string
	Institution string
	IP          string
	Now         string // regional timestamp, see model.Timestamp
}

// ProfileRepo persists user profiles in the `users` collection.
type ProfileRepo struct{ C *mongo.Collection }

func NewProfileRepo(db *mongo.Database) *ProfileRepo {
	return &ProfileRepo{C: db.Collection(database.UsersCollection)}
}

// Upsert updates the profile for in.UID, creating it when absent.
// createdAt and signupIp are only written on insert.
func (r *ProfileRepo) Upsert(ctx context.Context, in ProfileUpsert) (UpsertResult, error) {
	res, err := r.C.UpdateOne(ctx,
		bson.M{"uid": in.UID},
		profileUpsertUpdate(in),
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return UpsertResult{}, err
	}
	return UpsertResult{
		Acknowledged:  res.Acknowledged,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

func profileUpsertUpdate(in ProfileUpsert) bson.M {
	return bson.M{
		"$set": bson.M{
			"email":       in.Email,
			"country":     in.Country,
			"institution": in.Institution,
			"updatedAt":   in.Now,
			"lastIp":      in.IP,
		},
		"$setOnInsert": bson.M{
			"createdAt": in.Now,
			"signupIp":  in.IP,
		},
	}
}

// DeleteOthersByEmail removes every profile that has email but belongs to a
// different uid, which happens when the identity provider recreates a user.
// It returns the uids it removed.
func (r *ProfileRepo) DeleteOthersByEmail(ctx context.Context, email, uid string) ([]string, error) {
	filter := bson.M{"email": email, "uid": bson.M{"$ne": uid}}
	cur, err := r.C.Find(ctx, filter, options.Find().SetProjection(bson.M{"uid": 1}))
	if err != nil {
		return nil, err
	}
	var stale []model.Profile
	if err := cur.All(ctx, &stale); err != nil {
		return nil, err
	}
	if len(stale) == 0 {
		return nil, nil
	}
	uids := make([]string, 0, len(stale))
	for _, p := range stale {
		uids = append(uids, p.UID)
	}
	if _, err := r.C.DeleteMany(ctx, bson.M{"email": email, "uid": bson.M{"$in": uids}}); err != nil {
		return nil, err
	}
	return uids, nil
}

// GetByUID fetches a profile by identity-provider uid.
func (r *ProfileRepo) GetByUID(ctx context.Context, uid string) (model.Profile, error) {
	return r.findOne(ctx, bson.M{"uid": uid})
}

// GetByEmail fetches a profile by exact email.
func (r *ProfileRepo) GetByEmail(ctx context.Context, email string) (model.Profile, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByResetToken fetches the profile carrying an outstanding reset token.
func (r *ProfileRepo) GetByResetToken(ctx context.Context, token string) (model.Profile, error) {
	if strings.TrimSpace(token) == "" {
		return model.Profile{}, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"resetToken": token})
}

// SetResetToken stores a reset token on the profile with email, replacing any
// previous one.
func (r *ProfileRepo) SetResetToken(ctx context.Context, email, token string, expires time.Time) error {
	res, err := r.C.UpdateOne(ctx,
		bson.M{"email": email},
		bson.M{"$set": bson.M{"resetToken": token, "resetExpires": expires}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearResetToken unsets the reset fields once the token was redeemed.
func (r *ProfileRepo) ClearResetToken(ctx context.Context, uid string) error {
	_, err := r.C.UpdateOne(ctx,
		bson.M{"uid": uid},
		bson.M{"$unset": bson.M{"resetToken": "", "resetExpires": ""}})
	return err
}

// DeleteByEmail removes at most one profile with email.
func (r *ProfileRepo) DeleteByEmail(ctx context.Context, email string) (DeleteResult, error) {
	res, err := r.C.DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{Acknowledged: res.Acknowledged, DeletedCount: res.DeletedCount}, nil
}

// List returns every profile; used by the admin dump.
func (r *ProfileRepo) List(ctx context.Context) ([]model.Profile, error) {
	cur, err := r.C.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	out := []model.Profile{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ProfileRepo) findOne(ctx context.Context, filter bson.M) (model.Profile, error) {
	var p model.Profile
	err := r.C.FindOne(ctx, filter).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.Profile{}, ErrNotFound
	}
	return p, err
}
