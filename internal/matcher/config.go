package matcher

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MatchConfig holds the tolerances used when comparing staged transactions
// against existing ledger transactions.
//
// Use the factory functions for common scenarios:
//   - DefaultMatchConfig(): the standard tolerances (±7 days, ±0.05)
//   - StrictMatchConfig(): same-day, exact-amount matching
//   - RelaxedMatchConfig(): wide window for exploratory review
type MatchConfig struct {
	// DateWindowDays is the number of days either side of the staged date
	// within which a ledger transaction is a candidate
	DateWindowDays int `json:"date_window_days"`

	// AmountTolerance is the absolute currency tolerance for amount matching
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// MaxCandidates caps the candidate set returned for ambiguous outcomes
	MaxCandidates int `json:"max_candidates"`
}

// DefaultMatchConfig returns a configuration with the standard tolerances
func DefaultMatchConfig() *MatchConfig {
	return &MatchConfig{
		DateWindowDays:  7,
		AmountTolerance: decimal.NewFromFloat(0.05),
		MaxCandidates:   10,
	}
}

// StrictMatchConfig returns a configuration requiring same-day exact amounts
func StrictMatchConfig() *MatchConfig {
	return &MatchConfig{
		DateWindowDays:  0,
		AmountTolerance: decimal.Zero,
		MaxCandidates:   5,
	}
}

// RelaxedMatchConfig returns a configuration with loose tolerances
func RelaxedMatchConfig() *MatchConfig {
	return &MatchConfig{
		DateWindowDays:  14,
		AmountTolerance: decimal.NewFromFloat(0.50),
		MaxCandidates:   20,
	}
}

// Validate checks if the match configuration is valid
func (mc *MatchConfig) Validate() error {
	if mc.DateWindowDays < 0 {
		return fmt.Errorf("date window days cannot be negative: %d", mc.DateWindowDays)
	}

	if mc.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", mc.AmountTolerance.String())
	}

	if mc.MaxCandidates <= 0 {
		return fmt.Errorf("max candidates must be positive: %d", mc.MaxCandidates)
	}

	return nil
}

// Clone creates a copy of the match configuration
func (mc *MatchConfig) Clone() *MatchConfig {
	if mc == nil {
		return nil
	}
	return &MatchConfig{
		DateWindowDays:  mc.DateWindowDays,
		AmountTolerance: mc.AmountTolerance,
		MaxCandidates:   mc.MaxCandidates,
	}
}

// WindowAround returns the inclusive date range the config considers around
// a staged transaction's date
func (mc *MatchConfig) WindowAround(date time.Time) (time.Time, time.Time) {
	return date.AddDate(0, 0, -mc.DateWindowDays), date.AddDate(0, 0, mc.DateWindowDays)
}

// WithinAmountTolerance reports whether two amounts differ by no more than
// the configured tolerance
func (mc *MatchConfig) WithinAmountTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(mc.AmountTolerance)
}

// String returns a human-readable description of the configuration
func (mc *MatchConfig) String() string {
	return fmt.Sprintf("MatchConfig{DateWindow: ±%d days, AmountTolerance: ±%s, MaxCandidates: %d}",
		mc.DateWindowDays, mc.AmountTolerance.String(), mc.MaxCandidates)
}
