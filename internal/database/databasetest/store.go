// Package databasetest provides an in-memory alert store with the same
// matched/changed accounting as the MongoDB collection.
package databasetest

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"skyprice/internal/database"
	"skyprice/internal/models"
)

type Store struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]bson.M

	// Err, when set, is returned wrapped in a *database.StoreError by every call.
	Err error
}

func NewStore() *Store {
	return &Store{docs: make(map[primitive.ObjectID]bson.M)}
}

func (s *Store) fail(op string) error {
	if s.Err != nil {
		return &database.StoreError{Op: op, Err: s.Err}
	}
	return nil
}

func (s *Store) Insert(_ context.Context, doc bson.D) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("insert"); err != nil {
		return primitive.NilObjectID, err
	}

	m, err := normalize(doc)
	if err != nil {
		return primitive.NilObjectID, &database.StoreError{Op: "insert", Err: err}
	}
	id, ok := m[models.FieldID].(primitive.ObjectID)
	if !ok {
		id = primitive.NewObjectID()
		m[models.FieldID] = id
	}
	s.docs[id] = m
	return id, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) ([]*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("find"); err != nil {
		return nil, err
	}

	alerts := make([]*models.Alert, 0)
	for _, m := range s.docs {
		if m[models.FieldEmail] != email {
			continue
		}
		a, err := decode(m)
		if err != nil {
			return nil, &database.StoreError{Op: "decode", Err: err}
		}
		alerts = append(alerts, a)
	}
	sort.Slice(alerts, func(i, j int) bool {
		if !alerts[i].CreatedAt.Equal(alerts[j].CreatedAt) {
			return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
		}
		return alerts[i].ID.Hex() > alerts[j].ID.Hex()
	})
	return alerts, nil
}

func (s *Store) FindByID(_ context.Context, id primitive.ObjectID) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("find_one"); err != nil {
		return nil, err
	}

	m, ok := s.docs[id]
	if !ok {
		return nil, database.ErrNoDocument
	}
	a, err := decode(m)
	if err != nil {
		return nil, &database.StoreError{Op: "decode", Err: err}
	}
	return a, nil
}

func (s *Store) UpdateFields(_ context.Context, id primitive.ObjectID, fields bson.D) (database.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("update"); err != nil {
		return database.UpdateResult{}, err
	}

	m, ok := s.docs[id]
	if !ok {
		return database.UpdateResult{}, nil
	}
	set, err := normalize(fields)
	if err != nil {
		return database.UpdateResult{}, &database.StoreError{Op: "update", Err: err}
	}
	return database.UpdateResult{Matched: 1, Changed: apply(m, set)}, nil
}

func (s *Store) RecordPrice(_ context.Context, id primitive.ObjectID, price float64, at time.Time) (database.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("record_price"); err != nil {
		return database.UpdateResult{}, err
	}

	m, ok := s.docs[id]
	if !ok {
		return database.UpdateResult{}, nil
	}
	if current, ok := m[models.FieldLastAlertPrice].(float64); ok && current == price {
		return database.UpdateResult{Matched: 1}, nil
	}
	changed := apply(m, bson.M{
		models.FieldLastAlertPrice:  price,
		models.FieldLastAlertSentAt: primitive.NewDateTimeFromTime(at),
	})
	return database.UpdateResult{Matched: 1, Changed: changed}, nil
}

func (s *Store) DeleteByID(_ context.Context, id primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail("delete"); err != nil {
		return 0, err
	}

	if _, ok := s.docs[id]; !ok {
		return 0, nil
	}
	delete(s.docs, id)
	return 1, nil
}

// Raw returns a copy of the stored document, as the collection would hold it.
func (s *Store) Raw(id primitive.ObjectID) (bson.M, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.docs[id]
	if !ok {
		return nil, false
	}
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, true
}

// Len reports how many documents are stored.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// apply writes set into m and returns 1 when any value differed.
func apply(m, set bson.M) int64 {
	var changed int64
	for k, v := range set {
		if old, ok := m[k]; !ok || !reflect.DeepEqual(old, v) {
			changed = 1
		}
		m[k] = v
	}
	return changed
}

// normalize round-trips v through BSON so stored values have driver types.
func normalize(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := bson.M{}
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decode(m bson.M) (*models.Alert, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var a models.Alert
	if err := bson.Unmarshal(raw, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
