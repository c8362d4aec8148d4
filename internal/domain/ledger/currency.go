// Package ledger implements the append-only currency ledger. Balances are never
// stored authoritatively: they are the sum of entries, with a per-account cache
// that is refreshed on every append and recomputed whenever it cannot be trusted.
package ledger

import (
	"fmt"
	"strings"
)

// QuartersPerUnit is the number of quarters in one display unit of the primary currency.
const QuartersPerUnit = 4

// Amount is a signed quantity in the smallest unit of its currency:
// quarters for Primary, whole points for Legacy.
type Amount int64

// Units converts display units of the primary currency to quarters.
func Units(n int64) Amount {
	return Amount(n * QuartersPerUnit)
}

// Int64 returns the raw value.
func (a Amount) Int64() int64 {
	return int64(a)
}

// Currency identifies a ledger currency.
type Currency string

const (
	// Primary is the quarter-denominated currency earned through the curriculum.
	Primary Currency = "BUX"
	// Legacy is the old points currency, kept for grants and conversion only.
	Legacy Currency = "POINTS"
)

type currencyTraits struct {
	scale   int64
	symbol  string
	kinds   map[Kind]bool
	sources map[Source]bool
}

var currencyTable = map[Currency]currencyTraits{
	Primary: {
		scale:  QuartersPerUnit,
		symbol: "₿",
		kinds: map[Kind]bool{
			KindEarn: true, KindSpend: true, KindRefund: true,
			KindAdjust: true, KindConvert: true,
		},
		sources: map[Source]bool{
			SourceProgress: true, SourcePurchase: true, SourceAchievement: true,
			SourceAdmin: true, SourceQuiz: true, SourceConvert: true, SourceBeltUp: true,
		},
	},
	Legacy: {
		scale:  1,
		symbol: "pts",
		kinds: map[Kind]bool{
			KindGrant: true, KindConvert: true, KindAdjust: true,
		},
		sources: map[Source]bool{
			SourceAdmin: true, SourceConvert: true, SourceImport: true,
		},
	},
}

// ParseCurrency parses a currency code.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown currency %q", s)
	}
	return c, nil
}

// IsValid reports whether the currency is known.
func (c Currency) IsValid() bool {
	_, ok := currencyTable[c]
	return ok
}

// Scale is the number of smallest units per display unit.
func (c Currency) Scale() int64 {
	return currencyTable[c].scale
}

// Allows reports whether an entry of the given kind and source may be
// recorded in this currency.
func (c Currency) Allows(kind Kind, source Source) bool {
	tr, ok := currencyTable[c]
	if !ok {
		return false
	}
	return tr.kinds[kind] && tr.sources[source]
}

// Format renders an amount for display, e.g. "10.25" or "-0.75".
func (c Currency) Format(a Amount) string {
	scale := c.Scale()
	if scale <= 1 {
		return fmt.Sprintf("%d", a)
	}
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/scale, (v%scale)*100/scale)
}

// Symbol returns the short display symbol.
func (c Currency) Symbol() string {
	return currencyTable[c].symbol
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}
