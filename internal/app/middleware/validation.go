package middleware

import (
	"context"
)

// Validator checks message fields. Implementations report failures as
// validation errors so transports can answer 400.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation runs before any unit of work is opened, so malformed commands
// never touch storage or the gateway.
func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guardCommands(v.Validate)
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return guardQueries(v.Validate)
}
