package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoCollection is the default collection name for MongoStore.
const MongoCollection = "sessions"

type mongoSession struct {
	ID                 string     `bson:"_id"`
	OwnerID            string     `bson:"owner_id"`
	Token              string     `bson:"token"`
	ClientAddress      string     `bson:"client_address,omitempty"`
	ClientAgent        string     `bson:"client_agent,omitempty"`
	DeviceSummary      string     `bson:"device_summary,omitempty"`
	CreatedAt          time.Time  `bson:"created_at"`
	LastActivity       time.Time  `bson:"last_activity"`
	AbsoluteExpiry     time.Time  `bson:"absolute_expiry"`
	IsActive           bool       `bson:"is_active"`
	DeactivatedAt      *time.Time `bson:"deactivated_at,omitempty"`
	DeactivationReason string     `bson:"deactivation_reason,omitempty"`
}

// MongoStore implements Store over a MongoDB collection.
//
// MongoDB keeps millisecond precision, so timestamps read back are truncated to the millisecond.
// Physical deletion is handled by the TTL index created in EnsureIndexes.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a store over db.Collection(MongoCollection).
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(MongoCollection)}
}

// mongoTTLIndex is the TTL index that deletes records retention after their absolute expiry.
const mongoTTLIndex = "ttl_sessions_absolute_expiry"

// EnsureIndexes creates the unique token index, the (owner_id, is_active) index
// and a sweep index, then reconciles the TTL index with retention.
// A non-positive retention drops the TTL index.
func (s *MongoStore) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetName("uq_sessions_token").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "is_active", Value: 1}},
			Options: options.Index().SetName("ix_sessions_owner_active"),
		},
		{
			Keys:    bson.D{{Key: "is_active", Value: 1}, {Key: "last_activity", Value: 1}},
			Options: options.Index().SetName("ix_sessions_active_last_activity"),
		},
	}
	if _, err := s.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("session: mongo indexes: %w", err)
	}
	if err := s.syncTTLIndex(ctx, retention); err != nil {
		return fmt.Errorf("session: mongo ttl index: %w", err)
	}
	return nil
}

// syncTTLIndex creates, retunes or drops the TTL index. Creating an index under an
// existing name with a different expireAfterSeconds is rejected by the server, so a
// changed retention goes through collMod instead.
func (s *MongoStore) syncTTLIndex(ctx context.Context, retention time.Duration) error {
	current, found, err := s.ttlSeconds(ctx)
	if err != nil {
		return err
	}

	if retention <= 0 {
		if !found {
			return nil
		}
		return s.coll.Indexes().DropOne(ctx, mongoTTLIndex)
	}

	want := int32(retention / time.Second)
	switch {
	case !found:
		_, err = s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "absolute_expiry", Value: 1}},
			Options: options.Index().SetName(mongoTTLIndex).SetExpireAfterSeconds(want),
		})
		return err
	case current != want:
		cmd := bson.D{
			{Key: "collMod", Value: s.coll.Name()},
			{Key: "index", Value: bson.D{
				{Key: "name", Value: mongoTTLIndex},
				{Key: "expireAfterSeconds", Value: want},
			}},
		}
		return s.coll.Database().RunCommand(ctx, cmd).Err()
	default:
		return nil
	}
}

// ttlSeconds reports the expireAfterSeconds of the TTL index, if it exists.
func (s *MongoStore) ttlSeconds(ctx context.Context) (int32, bool, error) {
	specs, err := s.coll.Indexes().ListSpecifications(ctx)
	if err != nil {
		return 0, false, err
	}
	for _, spec := range specs {
		if spec.Name != mongoTTLIndex {
			continue
		}
		if spec.ExpireAfterSeconds == nil {
			return 0, true, nil
		}
		return *spec.ExpireAfterSeconds, true, nil
	}
	return 0, false, nil
}

// Create implements Store.
func (s *MongoStore) Create(ctx context.Context, sess Session) error {
	doc := mongoSession{
		ID:             sess.ID,
		OwnerID:        sess.OwnerID,
		Token:          sess.Token,
		ClientAddress:  sess.ClientAddress,
		ClientAgent:    sess.ClientAgent,
		DeviceSummary:  sess.DeviceSummary,
		CreatedAt:      sess.CreatedAt,
		LastActivity:   sess.LastActivity,
		AbsoluteExpiry: sess.AbsoluteExpiry,
		IsActive:       true,
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateToken
	}
	return err
}

// FindActive implements Store.
func (s *MongoStore) FindActive(ctx context.Context, token, ownerID string) (Session, error) {
	return s.findOne(ctx, bson.M{"token": token, "owner_id": ownerID, "is_active": true})
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, id string) (Session, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (Session, error) {
	var doc mongoSession
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return doc.toSession(), nil
}

// ListActive implements Store.
func (s *MongoStore) ListActive(ctx context.Context, ownerID string) ([]Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := s.coll.Find(ctx, bson.M{"owner_id": ownerID, "is_active": true}, opts)
	if err != nil {
		return nil, err
	}

	var docs []mongoSession
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toSession())
	}
	return out, nil
}

// Touch implements Store. $max keeps last_activity monotonic.
func (s *MongoStore) Touch(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "is_active": true},
		bson.M{"$max": bson.M{"last_activity": at}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount == 1, nil
}

// Deactivate implements Store. Filtering on is_active keeps the first time and reason.
func (s *MongoStore) Deactivate(ctx context.Context, id string, now time.Time, reason DeactivationReason) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "is_active": true}, deactivateUpdate(now, reason))
	return err
}

// DeactivateByToken implements Store.
func (s *MongoStore) DeactivateByToken(ctx context.Context, token string, now time.Time, reason DeactivationReason) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"token": token, "is_active": true}, deactivateUpdate(now, reason))
	return err
}

// DeactivateAllExcept implements Store.
func (s *MongoStore) DeactivateAllExcept(ctx context.Context, ownerID, keepToken string, now time.Time, reason DeactivationReason) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"owner_id": ownerID, "is_active": true, "token": bson.M{"$ne": keepToken}},
		deactivateUpdate(now, reason),
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DeactivateStale implements Store. Expired records are marked first so they carry ReasonExpired.
func (s *MongoStore) DeactivateStale(ctx context.Context, now, idleCutoff time.Time) (int64, error) {
	expired, err := s.coll.UpdateMany(ctx,
		bson.M{"is_active": true, "absolute_expiry": bson.M{"$lte": now}},
		deactivateUpdate(now, ReasonExpired),
	)
	if err != nil {
		return 0, err
	}
	stale, err := s.coll.UpdateMany(ctx,
		bson.M{"is_active": true, "last_activity": bson.M{"$lte": idleCutoff}},
		deactivateUpdate(now, ReasonStale),
	)
	if err != nil {
		return expired.ModifiedCount, err
	}
	return expired.ModifiedCount + stale.ModifiedCount, nil
}

// Purge implements Store.
func (s *MongoStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"absolute_expiry": bson.M{"$lt": before}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func deactivateUpdate(now time.Time, reason DeactivationReason) bson.M {
	return bson.M{"$set": bson.M{
		"is_active":           false,
		"deactivated_at":      now,
		"deactivation_reason": string(reason),
	}}
}

func (d mongoSession) toSession() Session {
	out := Session{
		ID:                 d.ID,
		OwnerID:            d.OwnerID,
		Token:              d.Token,
		ClientAddress:      d.ClientAddress,
		ClientAgent:        d.ClientAgent,
		DeviceSummary:      d.DeviceSummary,
		CreatedAt:          d.CreatedAt.UTC(),
		LastActivity:       d.LastActivity.UTC(),
		AbsoluteExpiry:     d.AbsoluteExpiry.UTC(),
		IsActive:           d.IsActive,
		DeactivationReason: DeactivationReason(d.DeactivationReason),
	}
	if d.DeactivatedAt != nil {
		at := d.DeactivatedAt.UTC()
		out.DeactivatedAt = &at
	}
	return out
}

var _ Store = (*MongoStore)(nil)
