// Package valuation computes the spendable balance of a goal account.
//
// Decay is never stored. The balance is derived on every read from the raw
// deposited total, the time of the last deposit and the current time:
//
//   - goal reached (raw >= target): the raw total, frozen for good
//   - otherwise: raw compounded by Rate once per elapsed Period, each step
//     rounded up to a whole unit
package valuation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Boundary decides whether an elapsed time that lands exactly on a period
// edge counts that period.
type Boundary string

const (
	// BoundaryInclusive counts k periods once elapsed >= k*Period.
	BoundaryInclusive Boundary = "inclusive"
	// BoundaryExclusive counts k periods only once elapsed > k*Period.
	BoundaryExclusive Boundary = "exclusive"
)

// DefaultPeriod is the decay period length.
const DefaultPeriod = 30 * 24 * time.Hour

// DefaultRate is the multiplier applied per elapsed period.
var DefaultRate = decimal.New(8, -1)

// Policy holds the decay parameters.
type Policy struct {
	Period   time.Duration
	Rate     decimal.Decimal
	Boundary Boundary
}

// DefaultPolicy returns the 30 day, x0.8, inclusive policy.
func DefaultPolicy() Policy {
	return Policy{
		Period:   DefaultPeriod,
		Rate:     DefaultRate,
		Boundary: BoundaryInclusive,
	}
}

// Validate checks the policy can be applied.
func (p Policy) Validate() error {
	if p.Period <= 0 {
		return errors.New("decay period must be positive")
	}
	if !p.Rate.IsPositive() || p.Rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("decay rate %s must be between 0 and 1", p.Rate)
	}
	switch p.Boundary {
	case BoundaryInclusive, BoundaryExclusive:
		return nil
	default:
		return fmt.Errorf("unknown decay boundary %q", p.Boundary)
	}
}

// Periods returns the number of whole decay periods in elapsed.
// Negative elapsed time (clock skew) counts as none.
func (p Policy) Periods(elapsed time.Duration) int64 {
	if elapsed <= 0 || p.Period <= 0 {
		return 0
	}
	n := int64(elapsed / p.Period)
	if p.Boundary == BoundaryExclusive && n > 0 && elapsed%p.Period == 0 {
		n--
	}
	return n
}

// Decay applies the rate periods times, rounding up after each step.
func (p Policy) Decay(raw decimal.Decimal, periods int64) decimal.Decimal {
	v := raw
	for i := int64(0); i < periods; i++ {
		next := v.Mul(p.Rate).Ceil()
		// small balances reach a fixed point where rounding up cancels the rate
		if next.Equal(v) {
			break
		}
		v = next
	}
	return v
}

// Value returns the current valuation. It is a pure function of its inputs.
func (p Policy) Value(rawDeposited, target decimal.Decimal, lastActivity, now time.Time) decimal.Decimal {
	if rawDeposited.GreaterThanOrEqual(target) {
		return rawDeposited
	}
	return p.Decay(rawDeposited, p.Periods(now.Sub(lastActivity)))
}
