// AccessMux - Tenant-Scoped Access Control Event Multiplexer
// Copyright 2026 the AccessMux authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/accessmux/accessmux

// Package validation wraps go-playground/validator with a thread-safe
// singleton instance and error translation into the API error format.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/accessmux/accessmux/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// instance returns the singleton validator. Struct metadata is cached, so
// a single instance is both cheaper and safe for concurrent use.
func instance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Errors aggregates field validation failures for one struct.
type Errors struct {
	fields []string
}

// Error implements the error interface.
func (e *Errors) Error() string {
	return "validation failed: " + strings.Join(e.fields, "; ")
}

// ToAPIError renders the failures as the standard API error envelope.
func (e *Errors) ToAPIError() *models.APIError {
	return &models.APIError{
		Code:    "VALIDATION_ERROR",
		Message: strings.Join(e.fields, "; "),
	}
}

// ValidateStruct validates a tagged struct. Returns *Errors on failure.
func ValidateStruct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &Errors{}
	for _, fe := range verrs {
		out.fields = append(out.fields, translate(fe))
	}
	return out
}

// translate renders one field error as a human-readable message.
func translate(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "timezone":
		return fmt.Sprintf("%s must be a valid IANA time zone", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
