package model

import "github.com/shopspring/decimal"

// Amount is the arbitrary-precision signed decimal used for every
// monetary quantity in the system. Never use float64 for amounts, prices,
// or fees; Amount always round-trips through its canonical base-10 string
// form on the wire and at rest.
type Amount = decimal.Decimal

// ZeroAmount is the additive identity, exported so callers do not need to
// import shopspring/decimal directly just to get a zero value.
var ZeroAmount = decimal.Zero

// ParseAmount parses a base-10 string into an exact Amount via
// decimal.NewFromString, which also accepts exponent notation such as
// "1e-3"; no binary float is involved.
func ParseAmount(s string) (Amount, error) {
	return decimal.NewFromString(s)
}
