// Package model defines the canonical data model: currencies, accounts,
// sessions, raw and canonical transactions, movements, fees, and cursors.
package model

import "strings"

// AssetClass classifies a Currency.
type AssetClass string

const (
	AssetClassCrypto AssetClass = "crypto"
	AssetClassFiat   AssetClass = "fiat"
	AssetClassNFT    AssetClass = "nft"
)

// Currency is immutable once created; lookups are by (Symbol) or
// (Symbol, Network, ContractAddress).
type Currency struct {
	Symbol          string
	Decimals        int
	AssetClass      AssetClass
	Network         string
	ContractAddress string
	IsNative        bool
}

// Key returns the lookup key used by a currency registry: the bare symbol
// when no network/contract distinguishes it, otherwise the qualified form.
func (c Currency) Key() string {
	if c.Network == "" && c.ContractAddress == "" {
		return strings.ToUpper(c.Symbol)
	}
	return strings.ToUpper(c.Symbol) + "|" + c.Network + "|" + c.ContractAddress
}

// NewCurrency normalizes the symbol to uppercase, matching the invariant
// that Currency lookups are case-insensitive on Symbol.
func NewCurrency(symbol string, decimals int, class AssetClass) Currency {
	return Currency{
		Symbol:     strings.ToUpper(symbol),
		Decimals:   decimals,
		AssetClass: class,
		IsNative:   class == AssetClassCrypto,
	}
}
