package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"getmyguide/internal/domain/shared/errs"
)

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindAuthorization:
		return http.StatusForbidden
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindPaymentVerification:
		return http.StatusPaymentRequired
	case errs.KindGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// respondError maps err onto a status. Internal and consistency failures
// hide their cause from the client.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var bindErr bindError
	kind := errs.KindOf(err)
	if errors.As(err, &bindErr) {
		kind = errs.KindValidation
	}
	status := statusFor(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
		if kind == errs.KindConsistency {
			msg = "operation partially applied; operators have been alerted"
		}
	}
	if logger != nil && status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "status", status, "kind", kind, "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: msg, Kind: string(kind)})
}

// bindError wraps request decoding failures.
type bindError struct{ err error }

func (e bindError) Error() string { return "invalid request body: " + e.err.Error() }
func (e bindError) Unwrap() error { return e.err }

func bind(c *gin.Context, out any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil {
		return bindError{err: err}
	}
	return nil
}
