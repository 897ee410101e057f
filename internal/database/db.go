package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"skyprice/internal/config"
	"skyprice/internal/logger"
	"skyprice/internal/models"
)

// ErrNoDocument is returned by FindByID when nothing matches the identifier.
var ErrNoDocument = errors.New("no document matches the identifier")

// StoreError wraps any failure reported by the document store.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// UpdateResult reports how many documents an update matched and actually changed.
type UpdateResult struct {
	Matched int64
	Changed int64
}

// Store is the alerts collection behind a single client connected at startup.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// Connect opens the client, pings the primary and returns a ready Store.
func Connect(ctx context.Context, cfg config.MongoConfig) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, &StoreError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &StoreError{Op: "ping", Err: err}
	}

	logger.Log.Info("Database connection established",
		zap.String("database", cfg.Database),
		zap.String("collection", cfg.Collection),
	)
	return &Store{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
	}, nil
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

// Close disconnects the client. It is only called on shutdown.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return &StoreError{Op: "disconnect", Err: err}
	}
	return nil
}

// Insert stores doc and returns the generated identifier.
func (s *Store) Insert(ctx context.Context, doc bson.D) (primitive.ObjectID, error) {
	res, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		logger.Log.Error("Failed to insert alert", zap.Error(err))
		return primitive.NilObjectID, &StoreError{Op: "insert", Err: err}
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, &StoreError{Op: "insert", Err: fmt.Errorf("unexpected id type %T", res.InsertedID)}
	}
	return id, nil
}

// FindByEmail returns every alert for email, newest first.
func (s *Store) FindByEmail(ctx context.Context, email string) ([]*models.Alert, error) {
	cursor, err := s.collection.Find(ctx, emailFilter(email), options.Find().SetSort(newestFirst()))
	if err != nil {
		logger.Log.Error("Failed to query alerts by email", zap.Error(err))
		return nil, &StoreError{Op: "find", Err: err}
	}
	defer cursor.Close(ctx)

	alerts := make([]*models.Alert, 0)
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, &StoreError{Op: "decode", Err: err}
	}
	return alerts, nil
}

// FindByID returns the alert with id or ErrNoDocument.
func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error) {
	var alert models.Alert
	err := s.collection.FindOne(ctx, idFilter(id)).Decode(&alert)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoDocument
	}
	if err != nil {
		logger.Log.Error("Failed to retrieve alert", zap.String("alert_id", id.Hex()), zap.Error(err))
		return nil, &StoreError{Op: "find_one", Err: err}
	}
	return &alert, nil
}

// UpdateFields applies a $set of fields to the alert with id.
func (s *Store) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.D) (UpdateResult, error) {
	res, err := s.collection.UpdateOne(ctx, idFilter(id), bson.D{{Key: "$set", Value: fields}})
	if err != nil {
		logger.Log.Error("Failed to update alert", zap.String("alert_id", id.Hex()), zap.Error(err))
		return UpdateResult{}, &StoreError{Op: "update", Err: err}
	}
	return UpdateResult{Matched: res.MatchedCount, Changed: res.ModifiedCount}, nil
}

// RecordPrice writes last_alert_price and last_alert_sent_at in one update. The
// timestamp only moves when the price differs from the stored one, so repeating
// the same price reports the document as matched but unchanged.
func (s *Store) RecordPrice(ctx context.Context, id primitive.ObjectID, price float64, at time.Time) (UpdateResult, error) {
	res, err := s.collection.UpdateOne(ctx, idFilter(id), recordPricePipeline(price, at))
	if err != nil {
		logger.Log.Error("Failed to record alert price", zap.String("alert_id", id.Hex()), zap.Error(err))
		return UpdateResult{}, &StoreError{Op: "record_price", Err: err}
	}
	return UpdateResult{Matched: res.MatchedCount, Changed: res.ModifiedCount}, nil
}

// DeleteByID removes the alert with id and reports how many documents were deleted.
func (s *Store) DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.collection.DeleteOne(ctx, idFilter(id))
	if err != nil {
		logger.Log.Error("Failed to delete alert", zap.String("alert_id", id.Hex()), zap.Error(err))
		return 0, &StoreError{Op: "delete", Err: err}
	}
	return res.DeletedCount, nil
}

func idFilter(id primitive.ObjectID) bson.D {
	return bson.D{{Key: models.FieldID, Value: id}}
}

func emailFilter(email string) bson.D {
	return bson.D{{Key: models.FieldEmail, Value: email}}
}

// newestFirst sorts by creation time, then by id so equal timestamps stay stable.
func newestFirst() bson.D {
	return bson.D{{Key: models.FieldCreatedAt, Value: -1}, {Key: models.FieldID, Value: -1}}
}

func recordPricePipeline(price float64, at time.Time) mongo.Pipeline {
	samePrice := bson.D{{Key: "$eq", Value: bson.A{"$" + models.FieldLastAlertPrice, price}}}
	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: models.FieldLastAlertSentAt, Value: bson.D{{Key: "$cond", Value: bson.A{
				samePrice, "$" + models.FieldLastAlertSentAt, at,
			}}}},
			{Key: models.FieldLastAlertPrice, Value: price},
		}}},
	}
}
