package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	errDates := Sentinel(KindConflict, "guide: dates unavailable")
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: errors.New("boom"), want: KindInternal},
		{name: "sentinel", err: errDates, want: KindConflict},
		{name: "wrapped sentinel", err: fmt.Errorf("reserve: %w", errDates), want: KindConflict},
		{name: "outermost wins", err: E(KindConsistency, "cancel", errDates), want: KindConsistency},
		{name: "errorf", err: Errorf(KindValidation, "parse", "bad %s", "day"), want: KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestErrorMatchesKindSentinel(t *testing.T) {
	cause := errors.New("gateway timeout")
	err := fmt.Errorf("refund: %w", E(KindGateway, "payments.Refund", cause))

	assert.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.True(t, Is(err, KindGateway))

	var classified *Error
	require.ErrorAs(t, err, &classified)
	assert.Equal(t, "payments.Refund", classified.Op)
	assert.Equal(t, "refund: payments.Refund: gateway timeout", err.Error())
}
