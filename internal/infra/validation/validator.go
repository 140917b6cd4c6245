// Package validation checks `validate` struct tags on commands and queries
// before they reach their handlers.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"getmyguide/internal/app/middleware"
	"getmyguide/internal/domain/shared/errs"
)

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns a validation-kind error listing each failed field.
// Messages that are not structs pass through.
func (val *Validator) Validate(ctx context.Context, message any) error {
	err := val.v.StructCtx(ctx, message)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return errs.E(errs.KindValidation, "validate", err)
	}
	problems := make([]string, 0, len(fields))
	for _, f := range fields {
		problems = append(problems, describe(f))
	}
	return errs.Errorf(errs.KindValidation, "validate", "%s", strings.Join(problems, "; "))
}

func describe(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", f.Field())
	case "email":
		return fmt.Sprintf("%s must be an email address", f.Field())
	case "len":
		return fmt.Sprintf("%s must be %s characters", f.Field(), f.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", f.Field(), f.Param())
	case "gt", "gte", "lt", "lte":
		return fmt.Sprintf("%s must be %s %s", f.Field(), f.Tag(), f.Param())
	default:
		return fmt.Sprintf("%s failed %s", f.Field(), f.Tag())
	}
}

var _ middleware.Validator = (*Validator)(nil)
