package pricing

import (
	"getmyguide/internal/domain/shared/errs"
	"getmyguide/internal/domain/shared/money"
)

// AdvancePercent is the share of the total collected when a booking is confirmed.
const AdvancePercent = 20

var (
	ErrTotalNotPositive = errs.Sentinel(errs.KindValidation, "pricing: total price must be positive")
	ErrSplitMismatch    = errs.Sentinel(errs.KindValidation, "pricing: advance and remaining do not add up to total")
)

// Split is the two-phase payment plan of a booking. It is computed once and
// stored; later phases read it and never derive amounts again.
type Split struct {
	Total     money.Money
	Advance   money.Money
	Remaining money.Money
}

// SplitTotal divides total into the advance (rounded half-up) and its complement.
func SplitTotal(total money.Money) (Split, error) {
	if !total.IsPositive() {
		return Split{}, ErrTotalNotPositive
	}
	advance, err := total.Percent(AdvancePercent)
	if err != nil {
		return Split{}, err
	}
	remaining, err := total.Sub(advance)
	if err != nil {
		return Split{}, err
	}
	return Split{Total: total, Advance: advance, Remaining: remaining}, nil
}

func (s Split) Validate() error {
	if !s.Total.IsPositive() {
		return ErrTotalNotPositive
	}
	sum, err := s.Advance.Add(s.Remaining)
	if err != nil {
		return err
	}
	if sum != s.Total {
		return ErrSplitMismatch
	}
	return nil
}
