package validators

import (
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"skyprice/internal/models"
)

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidationError describes the first rule a payload violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidEmail checks the simple local@domain.tld shape.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidObjectID reports whether id is a 24 character hex identifier.
func IsValidObjectID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}

// IsValidDate reports whether s parses to a calendar date or timestamp.
func IsValidDate(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	_, err := cast.ToTimeE(s)
	return err == nil
}

// ValidateAlertCreation checks required fields first, then any optional field present.
func ValidateAlertCreation(req models.CreateAlertRequest) error {
	if s, ok := req.Email.AsString(); !ok || !IsValidEmail(strings.TrimSpace(s)) {
		return invalid(models.FieldEmail, "Invalid or missing email")
	}
	if !nonBlankString(req.From) {
		return invalid(models.FieldFrom, "Invalid or missing from")
	}
	if !nonBlankString(req.To) {
		return invalid(models.FieldTo, "Invalid or missing to")
	}
	return validateOptional(req.AlertFields)
}

// ValidateAlertUpdate checks a price update: identifier first, then price.
func ValidateAlertUpdate(req models.UpdatePriceRequest) error {
	if err := validateID(req.ID); err != nil {
		return err
	}
	if price, ok := req.Price.AsNumber(); !ok || price <= 0 {
		return invalid("price", "Invalid price")
	}
	return nil
}

// ValidateAlertEdit checks a partial edit. At least one client-owned field must be
// present and every present field must satisfy its create rule.
func ValidateAlertEdit(req models.EditAlertRequest) error {
	if err := validateID(req.ID); err != nil {
		return err
	}

	hasField := false
	for _, f := range req.Mutable() {
		if f.Value.Present() {
			hasField = true
			break
		}
	}
	if !hasField {
		return invalid("", "At least one field must be provided for update")
	}

	if req.Email.Present() {
		if s, ok := req.Email.AsString(); !ok || !IsValidEmail(strings.TrimSpace(s)) {
			return invalid(models.FieldEmail, "Invalid email")
		}
	}
	if req.From.Present() && !nonBlankString(req.From) {
		return invalid(models.FieldFrom, "Invalid from")
	}
	if req.To.Present() && !nonBlankString(req.To) {
		return invalid(models.FieldTo, "Invalid to")
	}
	return validateOptional(req.AlertFields)
}

// ValidateAlertID checks a bare identifier taken from a path parameter.
func ValidateAlertID(id string) error {
	return validateID(models.FieldOf(id))
}

// ValidateEmailQuery checks the email query parameter of the list operation.
func ValidateEmailQuery(email string) error {
	if strings.TrimSpace(email) == "" {
		return invalid(models.FieldEmail, "Invalid or missing email")
	}
	if !IsValidEmail(strings.TrimSpace(email)) {
		return invalid(models.FieldEmail, "Invalid email format")
	}
	return nil
}

func validateID(f models.Field) error {
	id, ok := f.AsString()
	if !ok || id == "" {
		return invalid("id", "Invalid or missing id")
	}
	if !IsValidObjectID(id) {
		return invalid("id", "Invalid ObjectId format")
	}
	return nil
}

// validateOptional applies the per-field rules of the optional members in document order.
func validateOptional(f models.AlertFields) error {
	if f.Budget.Present() && !f.Budget.IsNull() {
		if n, ok := f.Budget.AsNumber(); !ok || n <= 0 {
			return invalid(models.FieldBudget, "Invalid budget")
		}
	}
	if !optionalDate(f.StartRange) {
		return invalid(models.FieldStartRange, "Invalid start_range")
	}
	if !optionalDate(f.EndRange) {
		return invalid(models.FieldEndRange, "Invalid end_range")
	}
	if f.RoundTrip.Present() {
		if _, ok := f.RoundTrip.AsBool(); !ok {
			return invalid(models.FieldRoundTrip, "Invalid roundTrip")
		}
	}
	if !optionalDate(f.ReturnDate) {
		return invalid(models.FieldReturnDate, "Invalid return_date")
	}
	if f.PriceMode.Present() && !nonBlankString(f.PriceMode) {
		return invalid(models.FieldPriceMode, "Invalid price_mode")
	}
	if f.AlertType.Present() && !nonBlankString(f.AlertType) {
		return invalid(models.FieldAlertType, "Invalid alert_type")
	}
	return nil
}

func nonBlankString(f models.Field) bool {
	s, ok := f.AsString()
	return ok && strings.TrimSpace(s) != ""
}

func optionalDate(f models.Field) bool {
	if !f.Present() {
		return true
	}
	s, ok := f.AsString()
	return ok && IsValidDate(s)
}
