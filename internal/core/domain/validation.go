package domain

import (
	"fmt"
	"strings"
)

// Field names a validated attribute of NewUserInput.
type Field string

const (
	FieldName                 Field = "name"
	FieldEmail                Field = "email"
	FieldPassword             Field = "password"
	FieldPasswordConfirmation Field = "password_confirmation"
)

// ViolationKind identifies which rule a field failed.
type ViolationKind string

const (
	ViolationBlank        ViolationKind = "blank"
	ViolationTaken        ViolationKind = "taken"
	ViolationTooShort     ViolationKind = "too_short"
	ViolationTooLong      ViolationKind = "too_long"
	ViolationConfirmation ViolationKind = "confirmation"
)

// Violation is a single failed rule.
type Violation struct {
	Field Field         `json:"field"`
	Kind  ViolationKind `json:"kind"`
}

// Message renders the violation as a full, human-readable sentence.
func (v Violation) Message() string {
	switch v.Kind {
	case ViolationBlank:
		return v.Field.label() + " can't be blank"
	case ViolationTaken:
		return v.Field.label() + " has already been taken"
	case ViolationTooShort:
		return fmt.Sprintf("%s is too short (minimum is %d characters)", v.Field.label(), MinPasswordLength)
	case ViolationTooLong:
		return fmt.Sprintf("%s is too long (maximum is %d bytes)", v.Field.label(), MaxPasswordBytes)
	case ViolationConfirmation:
		return v.Field.label() + " doesn't match " + FieldPassword.label()
	default:
		return v.Field.label() + " is invalid"
	}
}

func (f Field) label() string {
	s := strings.ReplaceAll(string(f), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ValidationErrors collects every rule a registration attempt failed.
// A nil or empty value means the input is valid.
type ValidationErrors struct {
	Violations []Violation `json:"violations"`
}

// Add records a violation.
func (e *ValidationErrors) Add(field Field, kind ViolationKind) {
	e.Violations = append(e.Violations, Violation{Field: field, Kind: kind})
}

// Empty reports whether no rule failed.
func (e *ValidationErrors) Empty() bool {
	return e == nil || len(e.Violations) == 0
}

// Has reports whether field failed with kind.
func (e *ValidationErrors) Has(field Field, kind ViolationKind) bool {
	if e == nil {
		return false
	}
	for _, v := range e.Violations {
		if v.Field == field && v.Kind == kind {
			return true
		}
	}
	return false
}

// Messages returns the full message of every violation, in the order added.
func (e *ValidationErrors) Messages() []string {
	if e == nil {
		return nil
	}
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message())
	}
	return msgs
}

func (e *ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}
