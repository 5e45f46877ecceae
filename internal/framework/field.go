package framework

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FieldKind tells input collectors how a field should be edited.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindTextarea FieldKind = "textarea"
	KindList     FieldKind = "list"
	KindNumber   FieldKind = "number"
	KindSelect   FieldKind = "select"
)

// Field describes one input collected for a stage.
type Field struct {
	ID          string      `json:"id"                    yaml:"id"`
	Label       string      `json:"label"                 yaml:"label"`
	Kind        FieldKind   `json:"type"                  yaml:"type"`
	Required    bool        `json:"required"              yaml:"required"`
	Placeholder string      `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	HelpText    string      `json:"helpText,omitempty"    yaml:"helpText,omitempty"`
	Example     string      `json:"example,omitempty"     yaml:"example,omitempty"`
	Options     []string    `json:"options,omitempty"     yaml:"options,omitempty"`
	Validators  []Validator `json:"validators,omitempty"  yaml:"validators,omitempty"`
}

// ValidatorKind is the tag of a validator. The set is closed.
type ValidatorKind string

const (
	ValidatorNonEmpty  ValidatorKind = "non_empty"
	ValidatorMinLength ValidatorKind = "min_length"
	ValidatorPredicate ValidatorKind = "predicate"
)

// Validator is a serializable value check attached to a field.
type Validator struct {
	Kind      ValidatorKind `json:"kind"                yaml:"kind"`
	Min       int           `json:"min,omitempty"       yaml:"min,omitempty"`
	Predicate string        `json:"predicate,omitempty" yaml:"predicate,omitempty"`
	Message   string        `json:"message,omitempty"   yaml:"message,omitempty"`
}

// NonEmpty rejects blank values.
func NonEmpty() Validator {
	return Validator{Kind: ValidatorNonEmpty}
}

// MinLength rejects values shorter than n characters after trimming.
func MinLength(n int) Validator {
	return Validator{Kind: ValidatorMinLength, Min: n}
}

// Predicate references a named check in the predicate table.
func Predicate(name, message string) Validator {
	return Validator{Kind: ValidatorPredicate, Predicate: name, Message: message}
}

var predicates = map[string]func(string) bool{
	"numeric": func(v string) bool {
		_, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
		return err == nil
	},
	"percentage": func(v string) bool {
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		return err == nil && f >= 0 && f <= 100
	},
	"currency": func(v string) bool {
		v = strings.TrimLeft(v, "$€£¥ ")
		v = strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
		v = strings.TrimRight(strings.ToLower(v), "km")
		f, err := strconv.ParseFloat(v, 64)
		return err == nil && f >= 0
	},
	"url": func(v string) bool {
		u, err := url.Parse(v)
		return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
	},
}

// HasPredicate reports whether name is a known predicate.
func HasPredicate(name string) bool {
	_, ok := predicates[name]
	return ok
}

// Check validates a single value. Blank values are only rejected by non_empty;
// presence of required fields is the job of Completeness.
func (v Validator) Check(value string) error {
	value = strings.TrimSpace(value)
	switch v.Kind {
	case ValidatorNonEmpty:
		if value == "" {
			return v.fail("must not be empty")
		}
	case ValidatorMinLength:
		if value != "" && utf8.RuneCountInString(value) < v.Min {
			return v.fail(fmt.Sprintf("must be at least %d characters", v.Min))
		}
	case ValidatorPredicate:
		if value == "" {
			return nil
		}
		pred, ok := predicates[v.Predicate]
		if !ok {
			return fmt.Errorf("unknown predicate %q", v.Predicate)
		}
		if !pred(value) {
			return v.fail(fmt.Sprintf("must be a valid %s", v.Predicate))
		}
	default:
		return fmt.Errorf("unknown validator kind %q", v.Kind)
	}
	return nil
}

func (v Validator) fail(fallback string) error {
	if v.Message != "" {
		return errors.New(v.Message)
	}
	return errors.New(fallback)
}

// FieldError is a validator failure for one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}
