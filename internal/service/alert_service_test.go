package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"skyprice/internal/database"
	"skyprice/internal/database/databasetest"
	"skyprice/internal/models"
	"skyprice/internal/validators"
)

// stepClock advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

type fakeCache struct {
	entries     map[string]string
	err         error
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key, _ string) (string, bool, error) {
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	if c.err != nil {
		return c.err
	}
	c.entries[key] = value
	return nil
}

func (c *fakeCache) InvalidateByPrefix(_ context.Context, prefix string) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.invalidated++
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
			n++
		}
	}
	return n, nil
}

func createRequest(email, from, to string) models.CreateAlertRequest {
	var req models.CreateAlertRequest
	req.Email = models.FieldOf(email)
	req.From = models.FieldOf(from)
	req.To = models.FieldOf(to)
	return req
}

func mustCreate(t *testing.T, svc *AlertService, req models.CreateAlertRequest) string {
	t.Helper()
	id, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func rawDoc(t *testing.T, store *databasetest.Store, id string) map[string]any {
	t.Helper()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		t.Fatalf("bad id %q: %v", id, err)
	}
	m, ok := store.Raw(oid)
	if !ok {
		t.Fatalf("document %s not stored", id)
	}
	return m
}

func TestCreateNormalizesAndOmitsAbsentFields(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store, WithClock(stepClock()))

	req := createRequest("  John@Example.COM ", " JFK ", "LHR ")
	req.PriceMode = models.FieldOf("  cheapest ")
	id := mustCreate(t, svc, req)

	if len(id) != 24 {
		t.Fatalf("id %q is not a 24-char hex identifier", id)
	}
	doc := rawDoc(t, store, id)
	if doc[models.FieldEmail] != "john@example.com" {
		t.Errorf("email = %v", doc[models.FieldEmail])
	}
	if doc[models.FieldFrom] != "JFK" || doc[models.FieldTo] != "LHR" {
		t.Errorf("from/to = %v/%v", doc[models.FieldFrom], doc[models.FieldTo])
	}
	if doc[models.FieldPriceMode] != "cheapest" {
		t.Errorf("price_mode = %v", doc[models.FieldPriceMode])
	}
	if _, ok := doc[models.FieldCreatedAt]; !ok {
		t.Error("created_at not set")
	}
	for _, absent := range []string{models.FieldBudget, models.FieldRoundTrip, models.FieldLastAlertPrice, models.FieldUpdatedAt} {
		if _, ok := doc[absent]; ok {
			t.Errorf("%s stored but not supplied", absent)
		}
	}
}

func TestCreateBudget(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store)

	withNull := createRequest("a@b.com", "JFK", "LHR")
	withNull.Budget = models.NullField()
	doc := rawDoc(t, store, mustCreate(t, svc, withNull))
	if v, ok := doc[models.FieldBudget]; !ok || v != nil {
		t.Errorf("null budget: present=%v value=%v, want stored null", ok, v)
	}

	withValue := createRequest("a@b.com", "JFK", "LHR")
	withValue.Budget = models.FieldOf(450)
	doc = rawDoc(t, store, mustCreate(t, svc, withValue))
	if doc[models.FieldBudget] != float64(450) {
		t.Errorf("budget = %v", doc[models.FieldBudget])
	}
}

func TestCreateRejectsInvalidRequest(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store)

	req := createRequest("not-an-email", "JFK", "LHR")
	_, err := svc.Create(context.Background(), req)

	var verr *validators.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Reason != "Invalid or missing email" {
		t.Errorf("reason = %q", verr.Reason)
	}
	if store.Len() != 0 {
		t.Error("invalid request reached the store")
	}
}

func TestUpdatePriceIsIdempotent(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store, WithClock(stepClock()))
	id := mustCreate(t, svc, createRequest("a@b.com", "JFK", "LHR"))
	ctx := context.Background()

	req := models.UpdatePriceRequest{ID: models.FieldOf(id), Price: models.FieldOf(412.5)}
	updated, err := svc.UpdatePrice(ctx, req)
	if err != nil || !updated {
		t.Fatalf("first UpdatePrice: updated=%v err=%v", updated, err)
	}
	first := rawDoc(t, store, id)[models.FieldLastAlertSentAt]

	updated, err = svc.UpdatePrice(ctx, req)
	if err != nil {
		t.Fatalf("second UpdatePrice: %v", err)
	}
	if updated {
		t.Error("repeating the same price reported a change")
	}
	if second := rawDoc(t, store, id)[models.FieldLastAlertSentAt]; second != first {
		t.Errorf("last_alert_sent_at moved from %v to %v", first, second)
	}

	req.Price = models.FieldOf(399)
	if updated, err = svc.UpdatePrice(ctx, req); err != nil || !updated {
		t.Errorf("new price: updated=%v err=%v", updated, err)
	}
}

func TestUpdatePriceErrors(t *testing.T) {
	svc := NewAlertService(databasetest.NewStore())
	ctx := context.Background()

	_, err := svc.UpdatePrice(ctx, models.UpdatePriceRequest{
		ID:    models.FieldOf(primitive.NewObjectID().Hex()),
		Price: models.FieldOf(100),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}

	_, err = svc.UpdatePrice(ctx, models.UpdatePriceRequest{
		ID:    models.FieldOf(primitive.NewObjectID().Hex()),
		Price: models.FieldOf(0),
	})
	var verr *validators.ValidationError
	if !errors.As(err, &verr) || verr.Reason != "Invalid price" {
		t.Errorf("zero price: err = %v", err)
	}
}

func TestEditAppliesOnlySuppliedFields(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store, WithClock(stepClock()))
	create := createRequest("a@b.com", "JFK", "LHR")
	create.Budget = models.FieldOf(500)
	id := mustCreate(t, svc, create)

	var edit models.EditAlertRequest
	edit.From = models.FieldOf(" BOS ")
	edit.Budget = models.NullField()

	alert, updated, err := svc.Edit(context.Background(), id, edit)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !updated {
		t.Error("updated = false")
	}
	if alert.ID.Hex() != id {
		t.Errorf("returned id %s, want %s", alert.ID.Hex(), id)
	}
	if alert.From != "BOS" || alert.To != "LHR" || alert.Email != "a@b.com" {
		t.Errorf("alert = %+v", alert)
	}
	if alert.Budget != nil {
		t.Errorf("budget = %v, want cleared", *alert.Budget)
	}
	if alert.UpdatedAt == nil {
		t.Error("updated_at not set")
	}
}

func TestEditErrors(t *testing.T) {
	svc := NewAlertService(databasetest.NewStore())
	ctx := context.Background()

	var edit models.EditAlertRequest
	edit.To = models.FieldOf("SFO")
	if _, _, err := svc.Edit(ctx, primitive.NewObjectID().Hex(), edit); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: err = %v, want ErrNotFound", err)
	}

	var verr *validators.ValidationError
	_, _, err := svc.Edit(ctx, "xyz", edit)
	if !errors.As(err, &verr) || verr.Reason != "Invalid ObjectId format" {
		t.Errorf("malformed id: err = %v", err)
	}

	_, _, err = svc.Edit(ctx, primitive.NewObjectID().Hex(), models.EditAlertRequest{})
	if !errors.As(err, &verr) || verr.Reason != "At least one field must be provided for update" {
		t.Errorf("empty edit: err = %v", err)
	}
}

func TestListByEmailIsCaseInsensitiveAndNewestFirst(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store, WithClock(stepClock()))

	older := mustCreate(t, svc, createRequest("John@Example.com", "JFK", "LHR"))
	newer := mustCreate(t, svc, createRequest("john@example.com", "BOS", "CDG"))
	mustCreate(t, svc, createRequest("other@example.com", "SFO", "NRT"))

	alerts, err := svc.ListByEmail(context.Background(), "  JOHN@example.COM ")
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	if alerts[0].ID.Hex() != newer || alerts[1].ID.Hex() != older {
		t.Errorf("order = [%s %s], want [%s %s]", alerts[0].ID.Hex(), alerts[1].ID.Hex(), newer, older)
	}

	empty, err := svc.ListByEmail(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("want empty non-nil list, got %#v", empty)
	}
}

func TestListByEmailValidation(t *testing.T) {
	svc := NewAlertService(databasetest.NewStore())
	tests := []struct {
		email  string
		reason string
	}{
		{"", "Invalid or missing email"},
		{"   ", "Invalid or missing email"},
		{"foo", "Invalid email format"},
	}
	for _, tc := range tests {
		_, err := svc.ListByEmail(context.Background(), tc.email)
		var verr *validators.ValidationError
		if !errors.As(err, &verr) || verr.Reason != tc.reason {
			t.Errorf("ListByEmail(%q) err = %v, want %q", tc.email, err, tc.reason)
		}
	}
}

func TestDelete(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store)
	id := mustCreate(t, svc, createRequest("a@b.com", "JFK", "LHR"))
	ctx := context.Background()

	if err := svc.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.Len() != 0 {
		t.Error("document still stored")
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete err = %v, want ErrNotFound", err)
	}

	var verr *validators.ValidationError
	if err := svc.Delete(ctx, "xyz"); !errors.As(err, &verr) {
		t.Errorf("malformed id err = %v, want ValidationError", err)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := databasetest.NewStore()
	svc := NewAlertService(store)
	id := mustCreate(t, svc, createRequest("a@b.com", "JFK", "LHR"))
	store.Err = errors.New("connection reset")
	ctx := context.Background()

	var edit models.EditAlertRequest
	edit.To = models.FieldOf("SFO")

	calls := map[string]func() error{
		"create": func() error {
			_, err := svc.Create(ctx, createRequest("a@b.com", "JFK", "LHR"))
			return err
		},
		"update": func() error {
			_, err := svc.UpdatePrice(ctx, models.UpdatePriceRequest{ID: models.FieldOf(id), Price: models.FieldOf(10)})
			return err
		},
		"edit": func() error {
			_, _, err := svc.Edit(ctx, id, edit)
			return err
		},
		"list": func() error {
			_, err := svc.ListByEmail(ctx, "a@b.com")
			return err
		},
		"delete": func() error { return svc.Delete(ctx, id) },
	}
	for name, call := range calls {
		var serr *database.StoreError
		if err := call(); !errors.As(err, &serr) {
			t.Errorf("%s: err = %v, want StoreError", name, err)
		}
	}
}

func TestListCacheServesAndInvalidates(t *testing.T) {
	store := databasetest.NewStore()
	cache := newFakeCache()
	svc := NewAlertService(store, WithCache(cache, time.Minute), WithClock(stepClock()))
	ctx := context.Background()

	mustCreate(t, svc, createRequest("a@b.com", "JFK", "LHR"))
	if _, err := svc.ListByEmail(ctx, "A@b.com"); err != nil {
		t.Fatalf("ListByEmail: %v", err)
	}
	if _, ok := cache.entries[listCachePrefix+"a@b.com"]; !ok {
		t.Fatal("list was not cached under the normalized email")
	}

	// A cached list is served without touching the store.
	store.Err = errors.New("down")
	alerts, err := svc.ListByEmail(ctx, "a@b.com")
	if err != nil || len(alerts) != 1 {
		t.Fatalf("cached list: len=%d err=%v", len(alerts), err)
	}
	store.Err = nil

	mustCreate(t, svc, createRequest("a@b.com", "BOS", "CDG"))
	if len(cache.entries) != 0 {
		t.Error("create did not invalidate cached lists")
	}
	alerts, err = svc.ListByEmail(ctx, "a@b.com")
	if err != nil || len(alerts) != 2 {
		t.Errorf("after create: len=%d err=%v", len(alerts), err)
	}
}

func TestListCacheFailuresAreIgnored(t *testing.T) {
	cache := newFakeCache()
	cache.err = errors.New("redis unavailable")
	svc := NewAlertService(databasetest.NewStore(), WithCache(cache, time.Minute))
	ctx := context.Background()

	id := mustCreate(t, svc, createRequest("a@b.com", "JFK", "LHR"))
	alerts, err := svc.ListByEmail(ctx, "a@b.com")
	if err != nil || len(alerts) != 1 || alerts[0].ID.Hex() != id {
		t.Errorf("ListByEmail with failing cache: %v %v", alerts, err)
	}
	if err := svc.Delete(ctx, id); err != nil {
		t.Errorf("Delete with failing cache: %v", err)
	}
}
