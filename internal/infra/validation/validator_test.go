package validation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"getmyguide/internal/domain/shared/errs"
)

type sample struct {
	BookingID string `validate:"required"`
	Email     string `validate:"omitempty,email"`
	Total     int64  `validate:"gt=0"`
	Currency  string `validate:"omitempty,len=3"`
}

func TestValidateAcceptsValidStruct(t *testing.T) {
	v := New()
	err := v.Validate(context.Background(), sample{BookingID: "b-1", Total: 100, Currency: "INR"})
	require.NoError(t, err)
}

func TestValidateReportsEveryField(t *testing.T) {
	v := New()
	err := v.Validate(context.Background(), sample{Email: "nope", Currency: "RUPEE"})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindValidation))
	assert.Contains(t, err.Error(), "BookingID is required")
	assert.Contains(t, err.Error(), "Email must be an email address")
	assert.Contains(t, err.Error(), "Total must be gt 0")
	assert.Contains(t, err.Error(), "Currency must be 3 characters")
}

func TestValidateIgnoresNonStructs(t *testing.T) {
	v := New()
	require.NoError(t, v.Validate(context.Background(), "plain string"))
	require.NoError(t, v.Validate(context.Background(), nil))
}

func TestValidatePointerToStruct(t *testing.T) {
	v := New()
	err := v.Validate(context.Background(), &sample{Total: 1})
	assert.True(t, errs.Is(err, errs.KindValidation))
}
