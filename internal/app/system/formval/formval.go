// Package formval validates decoded form structs with go-playground/validator.
//
// Field names in errors come from the `form` struct tag so they line up with
// the HTML input names.
package formval

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps a configured validator.Validate. It is safe for concurrent use.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that reports fields by their form tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks s against its `validate` tags. On failure it returns a
// *ValidationError; other errors (bad input type) are returned as-is.
func (fv *Validator) Validate(s any) error {
	err := fv.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ve := &ValidationError{Fields: make(map[string]string, len(verrs))}
		for _, fe := range verrs {
			ve.Fields[fe.Field()] = fe.Tag()
		}
		return ve
	}
	return err
}

// IsEmail reports whether s is a syntactically valid email address.
func (fv *Validator) IsEmail(s string) bool {
	return fv.v.Var(s, "required,email") == nil
}

// ValidationError maps each failing field to the tag that rejected it.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f, tag))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, ", ")
}

// Missing reports whether any field failed its required rule.
func (e *ValidationError) Missing() bool {
	for _, tag := range e.Fields {
		if tag == "required" {
			return true
		}
	}
	return false
}
