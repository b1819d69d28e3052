package models

import (
	"github.com/shopspring/decimal"
)

// ParamKind identifies the value kind carried by a decoded parameter.
type ParamKind string

const (
	// KindString is a plain string value
	KindString ParamKind = "string"
	// KindInt is an integer value
	KindInt ParamKind = "int"
	// KindDecimal is a fixed-precision decimal value
	KindDecimal ParamKind = "decimal"
	// KindAddress is a hex-encoded chain address
	KindAddress ParamKind = "address"
)

// ParamValue is a decoded event argument or function parameter.
// Exactly one of the value fields is meaningful, selected by Kind.
type ParamValue struct {
	Kind    ParamKind       `json:"kind"`
	Str     string          `json:"str,omitempty"`
	Int     int64           `json:"int,omitempty"`
	Dec     decimal.Decimal `json:"dec,omitempty"`
	Address string          `json:"address,omitempty"`
}

// StringValue creates a string-kind parameter value.
func StringValue(s string) ParamValue {
	return ParamValue{Kind: KindString, Str: s}
}

// IntValue creates an int-kind parameter value.
func IntValue(i int64) ParamValue {
	return ParamValue{Kind: KindInt, Int: i}
}

// DecimalValue creates a decimal-kind parameter value.
func DecimalValue(d decimal.Decimal) ParamValue {
	return ParamValue{Kind: KindDecimal, Dec: d}
}

// AddressValue creates an address-kind parameter value.
func AddressValue(a string) ParamValue {
	return ParamValue{Kind: KindAddress, Address: a}
}

// Param is a single key/value pair in an ordered parameter list.
type Param struct {
	Key   string     `json:"key"`
	Value ParamValue `json:"value"`
}

// Params is an ordered key-to-value mapping of decoded arguments.
// Order is preserved so repeated decodes of the same transaction are
// byte-identical when serialized.
type Params []Param

// Get returns the value for key and whether it was present.
func (p Params) Get(key string) (ParamValue, bool) {
	for _, kv := range p {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return ParamValue{}, false
}

// With appends a key/value pair and returns the extended list.
func (p Params) With(key string, value ParamValue) Params {
	return append(p, Param{Key: key, Value: value})
}
