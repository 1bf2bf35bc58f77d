package payroll

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Default rates, in dollars per hour.
var (
	DefaultHourlyRate  = decimal.NewFromInt(20)
	DefaultPremiumRate = decimal.NewFromInt(25)
	DefaultShadowRate  = decimal.NewFromInt(15)
	DefaultShadowHours = decimal.NewFromInt(1)
)

// RateTable resolves the hourly rate for a teacher handle.
type RateTable struct {
	Default     decimal.Decimal
	Premium     decimal.Decimal
	Shadow      decimal.Decimal
	ShadowHours decimal.Decimal

	premium map[string]struct{}
}

// NewRateTable creates a RateTable. Handles in premiumHandles are paid the
// Premium rate; every other handle falls back to the Default rate.
func NewRateTable(defaultRate, premiumRate, shadowRate, shadowHours decimal.Decimal, premiumHandles []string) *RateTable {
	t := &RateTable{
		Default:     defaultRate,
		Premium:     premiumRate,
		Shadow:      shadowRate,
		ShadowHours: shadowHours,
		premium:     make(map[string]struct{}, len(premiumHandles)),
	}
	for _, h := range premiumHandles {
		if key := FoldHandle(h); key != "" {
			t.premium[key] = struct{}{}
		}
	}
	return t
}

// DefaultRateTable returns a table with the built-in rates and no premium handles.
func DefaultRateTable() *RateTable {
	return NewRateTable(DefaultHourlyRate, DefaultPremiumRate, DefaultShadowRate, DefaultShadowHours, nil)
}

// RateFor returns the hourly rate for handle.
func (t *RateTable) RateFor(handle string) decimal.Decimal {
	if _, ok := t.premium[FoldHandle(handle)]; ok {
		return t.Premium
	}
	return t.Default
}

// IsPremium reports whether handle is on the premium list.
func (t *RateTable) IsPremium(handle string) bool {
	_, ok := t.premium[FoldHandle(handle)]
	return ok
}

// FoldHandle normalises a handle for comparison: no "@", lower case.
func FoldHandle(handle string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
}
