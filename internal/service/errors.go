package service

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound marks a referenced record as absent. Services wrap it
// with context; handlers translate it to a 404.
var ErrNotFound = errors.New("record not found")

// FieldError is one form-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field errors for one request. The
// operation that produced it performed no writes.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// errInvalidID rejects a malformed id path parameter as a validation
// failure rather than a lookup miss.
func errInvalidID(field string) error {
	verr := &ValidationError{}
	verr.add(field, "must be a valid id")
	return verr
}

// StockExceededError blocks an invoice line whose quantity exceeds the
// referenced product's available stock.
type StockExceededError struct {
	ProductName string
	Available   int
	Requested   int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("not enough stock for %s. Available: %d, Requested: %d",
		e.ProductName, e.Available, e.Requested)
}

// ConflictError surfaces a unique-constraint violation (duplicate
// customer email or invoice number). Never retried.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}
