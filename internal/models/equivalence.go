package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AssetEquivalence maps asset symbols into equivalence classes. Symbols in the
// same class are treated as 1:1 fungible for balance validation only; cost
// basis is always tracked per concrete symbol.
type AssetEquivalence struct {
	classOf map[string]string
	// uoaClass is the class whose members are denominated 1:1 in the
	// unit of account (stable tokens).
	uoaClass string
	// nativeClass is the class containing the chain's native asset and its
	// wrapped/staked derivatives; members convert via the reference price.
	nativeClass string
}

// NewAssetEquivalence builds an equivalence relation from named classes.
// nativeClass and uoaClass select which class converts via the reference
// price and which converts 1:1 to the unit of account.
func NewAssetEquivalence(classes map[string][]string, nativeClass, uoaClass string) *AssetEquivalence {
	eq := &AssetEquivalence{
		classOf:     make(map[string]string),
		uoaClass:    uoaClass,
		nativeClass: nativeClass,
	}
	for class, symbols := range classes {
		for _, sym := range symbols {
			eq.classOf[normalizeSymbol(sym)] = class
		}
	}
	return eq
}

// DefaultAssetEquivalence returns the equivalence relation used for Ethereum
// mainnet funds: ETH and its wrapped/staked forms, and USD stable tokens.
func DefaultAssetEquivalence() *AssetEquivalence {
	return NewAssetEquivalence(map[string][]string{
		"native": {"ETH", "WETH", "STETH", "WSTETH"},
		"usd":    {"USD", "USDC", "USDT", "DAI"},
	}, "native", "usd")
}

// ClassOf returns the equivalence class for an asset symbol. Symbols without
// an explicit class form a singleton class of their own name.
func (eq *AssetEquivalence) ClassOf(asset string) string {
	sym := normalizeSymbol(asset)
	if class, ok := eq.classOf[sym]; ok {
		return class
	}
	return sym
}

// Equivalent reports whether two asset symbols share an equivalence class.
func (eq *AssetEquivalence) Equivalent(a, b string) bool {
	return eq.ClassOf(a) == eq.ClassOf(b)
}

// UnitValue converts a quantity of asset to the unit of account using the
// reference price of the native asset. The second return is false when the
// asset belongs to no convertible class.
func (eq *AssetEquivalence) UnitValue(asset string, amount, referencePrice decimal.Decimal) (decimal.Decimal, bool) {
	switch eq.ClassOf(asset) {
	case eq.nativeClass:
		return amount.Mul(referencePrice), true
	case eq.uoaClass:
		return amount, true
	default:
		return decimal.Zero, false
	}
}

// IsNativeEquivalent reports whether the asset belongs to the native class.
func (eq *AssetEquivalence) IsNativeEquivalent(asset string) bool {
	return eq.ClassOf(asset) == eq.nativeClass
}

func normalizeSymbol(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}
