package eventid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_Deterministic(t *testing.T) {
	a := Compute("exchange-csv", "exchangecsv:primary", "tx1", "normal", "")
	b := Compute("exchange-csv", "exchangecsv:primary", "tx1", "normal", "")
	assert.Equal(t, a, b)
}

func TestCompute_DistinctInputsDistinctHash(t *testing.T) {
	base := Compute("exchange-csv", "exchangecsv:primary", "tx1", "normal", "")

	cases := map[string]string{
		"venueTxId changes": Compute("exchange-csv", "exchangecsv:primary", "tx2", "normal", ""),
		"source changes":    Compute("blockchain", "exchangecsv:primary", "tx1", "normal", ""),
		"provider changes":  Compute("exchange-csv", "exchangecsv:backup", "tx1", "normal", ""),
		"hint changes":      Compute("exchange-csv", "exchangecsv:primary", "tx1", "internal", ""),
	}

	for name, got := range cases {
		assert.NotEqual(t, base, got, name)
	}
}

func TestCompute_NoFieldConcatenationCollision(t *testing.T) {
	// "ab"+"c" and "a"+"bc" must not collide once separated by the unit
	// separator byte.
	a := Compute("ab", "c", "x", "y", "z")
	b := Compute("a", "bc", "x", "y", "z")
	assert.NotEqual(t, a, b)
}
