package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"skyprice/internal/database"
	"skyprice/internal/logger"
	"skyprice/internal/models"
	"skyprice/internal/validators"
)

// ErrNotFound is returned when a well-formed identifier matches no alert.
var ErrNotFound = errors.New("alert not found")

const (
	listCachePrefix = "alerts:email:"
	listEndpoint    = "/v1/alerts"
)

// AlertStore is the record store the service runs on.
type AlertStore interface {
	Insert(ctx context.Context, doc bson.D) (primitive.ObjectID, error)
	FindByEmail(ctx context.Context, email string) ([]*models.Alert, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Alert, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.D) (database.UpdateResult, error)
	RecordPrice(ctx context.Context, id primitive.ObjectID, price float64, at time.Time) (database.UpdateResult, error)
	DeleteByID(ctx context.Context, id primitive.ObjectID) (int64, error)
}

// ListCache caches serialized list results keyed by normalized email.
type ListCache interface {
	Get(ctx context.Context, key, endpoint string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	InvalidateByPrefix(ctx context.Context, prefix string) (int, error)
}

type Option func(*AlertService)

// WithCache enables list caching. Every successful write invalidates all cached lists.
func WithCache(c ListCache, ttl time.Duration) Option {
	return func(s *AlertService) {
		s.cache = c
		s.cacheTTL = ttl
	}
}

// WithClock overrides the time source used for system timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *AlertService) {
		s.now = now
	}
}

// AlertService validates requests, normalizes client values and applies them to the store.
type AlertService struct {
	store    AlertStore
	cache    ListCache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewAlertService(store AlertStore, opts ...Option) *AlertService {
	s := &AlertService{
		store:    store,
		cacheTTL: 30 * time.Second,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new alert holding only the supplied fields and returns its id.
func (s *AlertService) Create(ctx context.Context, req models.CreateAlertRequest) (string, error) {
	if err := validators.ValidateAlertCreation(req); err != nil {
		return "", err
	}

	doc := normalizeFields(req.AlertFields)
	doc = append(doc, bson.E{Key: models.FieldCreatedAt, Value: s.now()})

	id, err := s.store.Insert(ctx, doc)
	if err != nil {
		return "", err
	}
	s.invalidateLists(ctx)
	return id.Hex(), nil
}

// UpdatePrice records the last alerted price and when it was sent. It reports
// whether the stored document changed.
func (s *AlertService) UpdatePrice(ctx context.Context, req models.UpdatePriceRequest) (bool, error) {
	if err := validators.ValidateAlertUpdate(req); err != nil {
		return false, err
	}
	id := mustObjectID(req.ID)
	price, _ := req.Price.AsNumber()

	res, err := s.store.RecordPrice(ctx, id, price, s.now())
	if err != nil {
		return false, err
	}
	if res.Matched == 0 {
		return false, ErrNotFound
	}
	if res.Changed > 0 {
		s.invalidateLists(ctx)
	}
	return res.Changed > 0, nil
}

// Edit applies the fields present in req to the alert with id and returns the
// document as read back after the update, with whether anything changed.
func (s *AlertService) Edit(ctx context.Context, id string, req models.EditAlertRequest) (*models.Alert, bool, error) {
	req.ID = models.FieldOf(id)
	if err := validators.ValidateAlertEdit(req); err != nil {
		return nil, false, err
	}
	oid := mustObjectID(req.ID)

	set := normalizeFields(req.AlertFields)
	set = append(set, bson.E{Key: models.FieldUpdatedAt, Value: s.now()})

	res, err := s.store.UpdateFields(ctx, oid, set)
	if err != nil {
		return nil, false, err
	}
	if res.Matched == 0 {
		return nil, false, ErrNotFound
	}
	s.invalidateLists(ctx)

	// Not isolated from a concurrent write between the update and this read.
	alert, err := s.store.FindByID(ctx, oid)
	if errors.Is(err, database.ErrNoDocument) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return alert, res.Changed > 0, nil
}

// ListByEmail returns every alert of email, newest first. Lookup uses the same
// trimmed lower-case form the alerts were stored with.
func (s *AlertService) ListByEmail(ctx context.Context, email string) ([]*models.Alert, error) {
	if err := validators.ValidateEmailQuery(email); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	key := listCachePrefix + email

	if alerts, ok := s.cachedList(ctx, key); ok {
		return alerts, nil
	}

	alerts, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if alerts == nil {
		alerts = make([]*models.Alert, 0)
	}
	s.storeList(ctx, key, alerts)
	return alerts, nil
}

// Delete removes the alert with id.
func (s *AlertService) Delete(ctx context.Context, id string) error {
	if err := validators.ValidateAlertID(id); err != nil {
		return err
	}
	oid, _ := primitive.ObjectIDFromHex(id)

	deleted, err := s.store.DeleteByID(ctx, oid)
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrNotFound
	}
	s.invalidateLists(ctx)
	return nil
}

func (s *AlertService) cachedList(ctx context.Context, key string) ([]*models.Alert, bool) {
	if s.cache == nil {
		return nil, false
	}
	val, ok, err := s.cache.Get(ctx, key, listEndpoint)
	if err != nil {
		logger.Log.Warn("Failed to read list cache", zap.String("cache_key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	alerts := make([]*models.Alert, 0)
	if err := json.Unmarshal([]byte(val), &alerts); err != nil {
		logger.Log.Warn("Discarding unreadable cache entry", zap.String("cache_key", key), zap.Error(err))
		return nil, false
	}
	return alerts, true
}

func (s *AlertService) storeList(ctx context.Context, key string, alerts []*models.Alert) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(alerts)
	if err != nil {
		logger.Log.Warn("Failed to encode list for cache", zap.String("cache_key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
		logger.Log.Warn("Failed to store response in cache", zap.String("cache_key", key), zap.Error(err))
	}
}

func (s *AlertService) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.InvalidateByPrefix(ctx, listCachePrefix); err != nil {
		logger.Log.Warn("Failed to invalidate list cache", zap.String("prefix", listCachePrefix), zap.Error(err))
	}
}

// normalizeFields builds the $set or insert members for every field present in f.
// Strings are trimmed and email is lower-cased; dates are kept as supplied.
func normalizeFields(f models.AlertFields) bson.D {
	var doc bson.D
	for _, nf := range f.Mutable() {
		if !nf.Value.Present() {
			continue
		}
		doc = append(doc, bson.E{Key: nf.Name, Value: normalizeValue(nf.Name, nf.Value)})
	}
	return doc
}

func normalizeValue(name string, v models.Field) any {
	switch name {
	case models.FieldEmail:
		s, _ := v.AsString()
		return normalizeEmail(s)
	case models.FieldFrom, models.FieldTo, models.FieldPriceMode, models.FieldAlertType:
		s, _ := v.AsString()
		return strings.TrimSpace(s)
	case models.FieldBudget:
		if v.IsNull() {
			return nil
		}
		n, _ := v.AsNumber()
		return n
	case models.FieldRoundTrip:
		b, _ := v.AsBool()
		return b
	default:
		s, _ := v.AsString()
		return s
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// mustObjectID converts an identifier that already passed validation.
func mustObjectID(f models.Field) primitive.ObjectID {
	s, _ := f.AsString()
	id, _ := primitive.ObjectIDFromHex(s)
	return id
}
