package common

import (
	"fmt"
	"strings"
	"time"
)

// FieldError represents one failed rule on one request field.
type FieldError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator collects field errors before a request is accepted.
type Validator struct {
	errors []FieldError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]FieldError, 0),
	}
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *FieldError

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []FieldError {
	return v.errors
}

// Err returns a KindValidation error covering every collected failure, or nil.
func (v *Validator) Err(code string) error {
	if !v.HasErrors() {
		return nil
	}
	messages := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return Validation(code, strings.Join(messages, "; "), nil)
}

// Required rejects nil, empty and whitespace-only strings.
func Required(fieldName string, value interface{}) *FieldError {
	if value == nil {
		return &FieldError{Field: fieldName, Value: value, Message: "is required"}
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return &FieldError{Field: fieldName, Value: value, Message: "is required"}
		}
	case map[string]string:
		if len(v) == 0 {
			return &FieldError{Field: fieldName, Value: value, Message: "must not be empty"}
		}
	}
	return nil
}

// PositiveDuration rejects zero and negative durations.
func PositiveDuration(fieldName string, value interface{}) *FieldError {
	d, ok := value.(time.Duration)
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be a duration"}
	}
	if d <= 0 {
		return &FieldError{Field: fieldName, Value: value, Message: "must be positive"}
	}
	return nil
}

// NonNegative rejects negative integers.
func NonNegative(fieldName string, value interface{}) *FieldError {
	n, ok := value.(int)
	if !ok {
		return &FieldError{Field: fieldName, Value: value, Message: "must be an integer"}
	}
	if n < 0 {
		return &FieldError{Field: fieldName, Value: value, Message: "must not be negative"}
	}
	return nil
}
