// Package mongostore keeps sessions in a MongoDB collection with a TTL index
// on expires_at.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/msomdec/shopfront/internal/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	collectionName = "sessions"
	connectTimeout = 10 * time.Second
)

// Connect dials uri and pings the primary.
func Connect(ctx context.Context, uri string, logger *slog.Logger) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout).
		SetMaxPoolSize(50))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping failed: %w", err)
	}
	logger.Info("mongo client connected")
	return client, nil
}

type document struct {
	Key        string    `bson:"_id"`
	IsLoggedIn bool      `bson:"is_logged_in"`
	UserID     string    `bson:"user_id,omitempty"`
	UserEmail  string    `bson:"user_email,omitempty"`
	CSRFToken  string    `bson:"csrf_token"`
	Flash      string    `bson:"flash,omitempty"`
	ExpiresAt  time.Time `bson:"expires_at"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// SessionStore implements domain.SessionStore on MongoDB.
type SessionStore struct {
	coll *mongo.Collection
}

var _ domain.SessionStore = (*SessionStore)(nil)

// NewSessionStore binds the sessions collection of db and ensures its indexes.
func NewSessionStore(ctx context.Context, db *mongo.Database) (*SessionStore, error) {
	coll := db.Collection(collectionName)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mongo: create session indexes: %w", err)
	}
	return &SessionStore{coll: coll}, nil
}

func toDocument(sess *domain.Session) document {
	doc := document{
		Key:        sess.Key,
		IsLoggedIn: sess.IsLoggedIn,
		CSRFToken:  sess.CSRFToken,
		Flash:      sess.Flash,
		ExpiresAt:  sess.ExpiresAt.UTC(),
		CreatedAt:  sess.CreatedAt.UTC(),
		UpdatedAt:  sess.UpdatedAt.UTC(),
	}
	if sess.User != nil {
		doc.UserID = sess.User.ID.String()
		doc.UserEmail = sess.User.Email
	}
	return doc
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	if _, err := s.coll.InsertOne(ctx, toDocument(sess)); err != nil {
		return fmt.Errorf("mongo: create session: %w", err)
	}
	return nil
}

// Update replaces a live document without upserting, so a deleted session
// stays deleted.
func (s *SessionStore) Update(ctx context.Context, sess *domain.Session) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{
		"_id":        sess.Key,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}, toDocument(sess))
	if err != nil {
		return fmt.Errorf("mongo: update session: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	// The TTL monitor runs about once a minute, so filter on expiry as well.
	var doc document
	err := s.coll.FindOne(ctx, bson.M{
		"_id":        key,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mongo: get session: %w", err)
	}

	sess := &domain.Session{
		Key:        doc.Key,
		IsLoggedIn: doc.IsLoggedIn,
		CSRFToken:  doc.CSRFToken,
		Flash:      doc.Flash,
		ExpiresAt:  doc.ExpiresAt,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
	if doc.UserID != "" {
		id, err := uuid.Parse(doc.UserID)
		if err != nil {
			return nil, fmt.Errorf("mongo: decode session user: %w", err)
		}
		sess.User = &domain.UserSnapshot{ID: id, Email: doc.UserEmail}
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("mongo: delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{"user_id": userID.String()}); err != nil {
		return fmt.Errorf("mongo: delete user sessions: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": time.Now().UTC()}})
	if err != nil {
		return 0, fmt.Errorf("mongo: delete expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}
