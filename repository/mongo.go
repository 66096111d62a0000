package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/princinho/authcore/models"
)

// Mongo-backed repositories. Uniqueness of usernames, emails, and token
// hashes is enforced by the unique indexes created in database.EnsureIndexes;
// writes translate duplicate-key failures into the repository sentinels.

type MongoUserRepository struct {
	col *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{col: db.Collection("users")}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.col.InsertOne(ctx, user)
	if err != nil && isDuplicateKey(err) {
		if duplicateKeyMentions(err, "email") {
			return ErrDuplicateEmail
		}
		return ErrDuplicateUsername
	}
	return err
}

func (r *MongoUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := r.col.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *MongoUserRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"passwordHash": hash, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) UpdateRoles(ctx context.Context, id string, roles []string, isAdmin bool) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"roles": roles, "isAdmin": isAdmin, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) SetEmailVerified(ctx context.Context, id string, at time.Time) error {
	res, err := r.col.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"emailVerifiedAt": at, "updatedAt": at},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoUserRepository) Delete(ctx context.Context, id string) error {
	_, err := r.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

type MongoSessionRepository struct {
	col *mongo.Collection
}

func NewMongoSessionRepository(db *mongo.Database) *MongoSessionRepository {
	return &MongoSessionRepository{col: db.Collection("sessions")}
}

func (r *MongoSessionRepository) Create(ctx context.Context, session *models.Session) error {
	_, err := r.col.InsertOne(ctx, session)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateToken
	}
	return err
}

func (r *MongoSessionRepository) FindByTokenHash(ctx context.Context, hash string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"tokenHash": hash}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *MongoSessionRepository) Touch(ctx context.Context, id string, lastSeen time.Time, newExpiry *time.Time) error {
	set := bson.M{"lastSeenAt": lastSeen}
	if newExpiry != nil {
		set["expiresAt"] = *newExpiry
	}
	// The revokedAt filter keeps touch from racing a concurrent revoke into
	// a row that is both revoked and freshly touched.
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": set})
	return err
}

func (r *MongoSessionRepository) RevokeByID(ctx context.Context, id string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revokedAt": at}})
	return err
}

func (r *MongoSessionRepository) RevokeByTokenHash(ctx context.Context, hash string, at time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"tokenHash": hash, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revokedAt": at}})
	return err
}

func (r *MongoSessionRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{"userId": userID, "revokedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"revokedAt": at}})
	return err
}

func (r *MongoSessionRepository) RevokeOthersForUser(ctx context.Context, userID, keepHash string, at time.Time) error {
	_, err := r.col.UpdateMany(ctx,
		bson.M{
			"userId":    userID,
			"tokenHash": bson.M{"$ne": keepHash},
			"revokedAt": bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{"revokedAt": at}})
	return err
}

func (r *MongoSessionRepository) ListByUser(ctx context.Context, userID string) ([]*models.Session, error) {
	return r.list(ctx, bson.M{"userId": userID})
}

func (r *MongoSessionRepository) ListActiveByUser(ctx context.Context, userID string, now time.Time) ([]*models.Session, error) {
	return r.list(ctx, bson.M{
		"userId":    userID,
		"revokedAt": bson.M{"$exists": false},
		"expiresAt": bson.M{"$gt": now},
	})
}

func (r *MongoSessionRepository) list(ctx context.Context, filter bson.M) ([]*models.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastSeenAt", Value: -1}})
	cursor, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []*models.Session{}
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *MongoSessionRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

type MongoTokenRepository struct {
	col *mongo.Collection
}

func NewMongoTokenRepository(db *mongo.Database) *MongoTokenRepository {
	return &MongoTokenRepository{col: db.Collection("auth_tokens")}
}

func (r *MongoTokenRepository) Create(ctx context.Context, token *models.AuthToken) error {
	_, err := r.col.InsertOne(ctx, token)
	if err != nil && isDuplicateKey(err) {
		return ErrDuplicateToken
	}
	return err
}

func (r *MongoTokenRepository) FindByHash(ctx context.Context, kind models.TokenKind, hash string) (*models.AuthToken, error) {
	var t models.AuthToken
	err := r.col.FindOne(ctx, bson.M{"kind": kind, "tokenHash": hash}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *MongoTokenRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "usedAt": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"usedAt": at}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoTokenRepository) DeletePendingForUser(ctx context.Context, kind models.TokenKind, userID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{
		"kind":   kind,
		"userId": userID,
		"usedAt": bson.M{"$exists": false},
	})
	return err
}

func (r *MongoTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"userId": userID})
	return err
}

type MongoAuditRepository struct {
	col *mongo.Collection
}

func NewMongoAuditRepository(db *mongo.Database) *MongoAuditRepository {
	return &MongoAuditRepository{col: db.Collection("audit_log")}
}

func (r *MongoAuditRepository) Insert(ctx context.Context, event *models.AuditEvent) error {
	_, err := r.col.InsertOne(ctx, event)
	return err
}

func isDuplicateKey(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 || e.Code == 11001 {
				return true
			}
		}
	}

	return strings.Contains(err.Error(), "E11000 duplicate key error")
}

// duplicateKeyMentions reports whether the duplicate-key error names the
// unique index on the given field, used to attribute 409s to username vs
// email. Matching the index name rather than the whole message keeps key
// values that happen to contain the field name from misattributing the
// conflict.
func duplicateKeyMentions(err error, field string) bool {
	return strings.Contains(err.Error(), "index: "+field+"_1")
}
