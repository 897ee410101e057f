package database

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"skyprice/internal/models"
)

func TestStoreErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := error(&StoreError{Op: "insert", Err: cause})

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should reach the cause")
	}
	var serr *StoreError
	if !errors.As(err, &serr) || serr.Op != "insert" {
		t.Errorf("errors.As failed: %v", err)
	}
	if err.Error() != "store insert: connection reset" {
		t.Errorf("message = %q", err.Error())
	}
}

func TestNewestFirstSort(t *testing.T) {
	sort := newestFirst()
	if len(sort) != 2 || sort[0].Key != models.FieldCreatedAt || sort[0].Value != -1 {
		t.Fatalf("unexpected sort %v", sort)
	}
	if sort[1].Key != models.FieldID {
		t.Errorf("secondary sort should be _id, got %v", sort[1].Key)
	}
}

func TestRecordPricePipelineShape(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	p := recordPricePipeline(321.5, at)
	if len(p) != 1 {
		t.Fatalf("expected one stage, got %d", len(p))
	}
	stage := p[0]
	if stage[0].Key != "$set" {
		t.Fatalf("stage = %v", stage)
	}
	set, ok := stage[0].Value.(bson.D)
	if !ok || len(set) != 2 {
		t.Fatalf("set = %#v", stage[0].Value)
	}
	if set[0].Key != models.FieldLastAlertSentAt || set[1].Key != models.FieldLastAlertPrice {
		t.Errorf("fields written = %s, %s", set[0].Key, set[1].Key)
	}
	if set[1].Value != 321.5 {
		t.Errorf("price = %v", set[1].Value)
	}
	if _, err := bson.Marshal(bson.D{{Key: "pipeline", Value: p}}); err != nil {
		t.Errorf("pipeline must encode: %v", err)
	}
}

func TestFilters(t *testing.T) {
	id := primitive.NewObjectID()
	if f := idFilter(id); f[0].Key != "_id" || f[0].Value != id {
		t.Errorf("id filter = %v", f)
	}
	if f := emailFilter("a@b.com"); f[0].Key != "email" || f[0].Value != "a@b.com" {
		t.Errorf("email filter = %v", f)
	}
}
