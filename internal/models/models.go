package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alert represents a flight price alert stored in the alerts collection.
type Alert struct {
	ID              primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Email           string             `json:"email" bson:"email"`
	From            string             `json:"from" bson:"from"`
	To              string             `json:"to" bson:"to"`
	Budget          *float64           `json:"budget,omitempty" bson:"budget,omitempty"`
	StartRange      string             `json:"start_range,omitempty" bson:"start_range,omitempty"`
	EndRange        string             `json:"end_range,omitempty" bson:"end_range,omitempty"`
	RoundTrip       *bool              `json:"roundTrip,omitempty" bson:"roundTrip,omitempty"`
	ReturnDate      string             `json:"return_date,omitempty" bson:"return_date,omitempty"`
	PriceMode       string             `json:"price_mode,omitempty" bson:"price_mode,omitempty"`
	AlertType       string             `json:"alert_type,omitempty" bson:"alert_type,omitempty"`
	LastAlertPrice  *float64           `json:"last_alert_price,omitempty" bson:"last_alert_price,omitempty"`
	LastAlertSentAt *time.Time         `json:"last_alert_sent_at,omitempty" bson:"last_alert_sent_at,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       *time.Time         `json:"updated_at,omitempty" bson:"updated_at,omitempty"`
}

// Document field names shared by the service and the store.
const (
	FieldID              = "_id"
	FieldEmail           = "email"
	FieldFrom            = "from"
	FieldTo              = "to"
	FieldBudget          = "budget"
	FieldStartRange      = "start_range"
	FieldEndRange        = "end_range"
	FieldRoundTrip       = "roundTrip"
	FieldReturnDate      = "return_date"
	FieldPriceMode       = "price_mode"
	FieldAlertType       = "alert_type"
	FieldLastAlertPrice  = "last_alert_price"
	FieldLastAlertSentAt = "last_alert_sent_at"
	FieldCreatedAt       = "created_at"
	FieldUpdatedAt       = "updated_at"
)

// AlertFields holds the client-owned members shared by create and edit payloads.
type AlertFields struct {
	Email      Field `json:"email"`
	From       Field `json:"from"`
	To         Field `json:"to"`
	Budget     Field `json:"budget"`
	StartRange Field `json:"start_range"`
	EndRange   Field `json:"end_range"`
	RoundTrip  Field `json:"roundTrip"`
	ReturnDate Field `json:"return_date"`
	PriceMode  Field `json:"price_mode"`
	AlertType  Field `json:"alert_type"`
}

// NamedField pairs a document field name with its request value.
type NamedField struct {
	Name  string
	Value Field
}

// Mutable lists the client-owned fields in document order.
func (f AlertFields) Mutable() []NamedField {
	return []NamedField{
		{FieldEmail, f.Email},
		{FieldFrom, f.From},
		{FieldTo, f.To},
		{FieldBudget, f.Budget},
		{FieldStartRange, f.StartRange},
		{FieldEndRange, f.EndRange},
		{FieldRoundTrip, f.RoundTrip},
		{FieldReturnDate, f.ReturnDate},
		{FieldPriceMode, f.PriceMode},
		{FieldAlertType, f.AlertType},
	}
}

// CreateAlertRequest is the body of POST /v1/alerts/create.
type CreateAlertRequest struct {
	AlertFields
}

// EditAlertRequest is a partial edit. ID comes from the path, never from the body.
type EditAlertRequest struct {
	ID Field `json:"-"`
	AlertFields
}

// UpdatePriceRequest is the body of POST /v1/alerts/update and of price-sent messages.
type UpdatePriceRequest struct {
	ID    Field `json:"id"`
	Price Field `json:"price"`
}
