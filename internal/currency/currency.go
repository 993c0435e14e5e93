package currency

import (
	"fmt"
	"math"
	"strings"
)

// Code identifies a supported currency.
type Code string

const (
	USD Code = "USD"
	EUR Code = "EUR"
	TRY Code = "TRY"
)

// Parse validates a currency string against the supported set.
func Parse(s string) (Code, error) {
	switch Code(strings.ToUpper(strings.TrimSpace(s))) {
	case USD:
		return USD, nil
	case EUR:
		return EUR, nil
	case TRY:
		return TRY, nil
	}
	return "", fmt.Errorf("unsupported currency %q", s)
}

// Table maps a currency to how many of its units equal 1 USD.
// USD itself is implicitly 1 and never stored.
type Table map[Code]float64

// ToUSD converts an amount in the given currency to USD. When the table has
// no usable rate the amount is returned unconverted and lossy is true, so
// the caller can record the degraded conversion instead of failing the
// whole computation.
func (t Table) ToUSD(amount float64, c Code) (usd float64, lossy bool) {
	if c == USD {
		return amount, false
	}
	rate, ok := t[c]
	if !ok || rate <= 0 {
		return amount, true
	}
	return amount / rate, false
}

// FromUSD converts a USD amount to the target currency, with the same
// identity fallback as ToUSD when the rate is missing.
func (t Table) FromUSD(amount float64, c Code) (converted float64, lossy bool) {
	if c == USD {
		return amount, false
	}
	rate, ok := t[c]
	if !ok || rate <= 0 {
		return amount, true
	}
	return amount * rate, false
}

// Round2 rounds to two decimals for presentation. Internal accumulation
// keeps full float precision; only response edges round.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
