// Package fixed provides the integer fixed-point arithmetic used by the
// offer engine and the dividend ledgers. Amounts are arbitrary-precision
// integers denominated in an asset's smallest unit; ratios and exchange
// rates are integers scaled by 1e18.
package fixed

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// RatioDecimals is the number of decimal places a Ratio carries.
const RatioDecimals = 18

// OneScale is the Ratio representation of 1.0.
var OneScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(RatioDecimals), nil)

var (
	// ErrNegative is returned when an operation would produce a negative amount.
	ErrNegative = errors.New("fixed: negative amount")

	// ErrParse is returned when a numeric string cannot be parsed.
	ErrParse = errors.New("fixed: malformed number")
)

// Amount is a non-negative integer quantity of an asset's smallest unit.
// The zero value is the zero amount. Amount values are immutable; every
// operation returns a fresh value and never aliases internal state.
type Amount struct {
	v *big.Int
}

// NewAmount returns an Amount holding a copy of v. Negative values are
// rejected.
func NewAmount(v *big.Int) (Amount, error) {
	if v.Sign() < 0 {
		return Amount{}, ErrNegative
	}
	return Amount{v: new(big.Int).Set(v)}, nil
}

// AmountFromUint64 returns an Amount for v.
func AmountFromUint64(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// ParseAmount parses a base-10 integer string of smallest units.
func ParseAmount(s string) (Amount, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	return NewAmount(v)
}

// Units returns the amount scaled by 10^decimals, i.e. "whole" units
// expressed in smallest units. Units(45, 18) is 45e18.
func Units(whole int64, decimals uint8) Amount {
	v := big.NewInt(whole)
	v.Mul(v, pow10(decimals))
	return Amount{v: v}
}

// BigInt returns a copy of the underlying integer.
func (a Amount) BigInt() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.v)
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

// Cmp compares a and b, returning -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.big().Cmp(b.big()) }

// Add returns a+b.
func (a Amount) Add(b Amount) Amount {
	return Amount{v: new(big.Int).Add(a.big(), b.big())}
}

// Sub returns a-b, or ErrNegative if b exceeds a.
func (a Amount) Sub(b Amount) (Amount, error) {
	v := new(big.Int).Sub(a.big(), b.big())
	if v.Sign() < 0 {
		return Amount{}, ErrNegative
	}
	return Amount{v: v}, nil
}

// MulRatio returns floor(a*r / 1e18).
func (a Amount) MulRatio(r Ratio) Amount {
	v := new(big.Int).Mul(a.big(), r.big())
	v.Quo(v, OneScale)
	return Amount{v: v}
}

// MulRatioCeil returns ceil(a*r / 1e18).
func (a Amount) MulRatioCeil(r Ratio) Amount {
	v := new(big.Int).Mul(a.big(), r.big())
	return Amount{v: ceilDiv(v, OneScale)}
}

// MulBps returns floor(a * bps / 10000), the usual basis-point fee cut.
func (a Amount) MulBps(bps int64) Amount {
	v := new(big.Int).Mul(a.big(), big.NewInt(bps))
	v.Quo(v, big.NewInt(10000))
	return Amount{v: v}
}

// String returns the amount as a base-10 integer string.
func (a Amount) String() string { return a.big().String() }

// Ratio is a non-negative fixed-point number scaled by 1e18. It is used
// for collateral-to-debt ratios, liquidation thresholds and exchange
// rates.
type Ratio struct {
	v *big.Int
}

// NewRatio returns a Ratio holding a copy of the 1e18-scaled value v.
func NewRatio(v *big.Int) (Ratio, error) {
	if v.Sign() < 0 {
		return Ratio{}, ErrNegative
	}
	return Ratio{v: new(big.Int).Set(v)}, nil
}

// RatioFromInt returns the ratio n/1, e.g. RatioFromInt(2) is 2.0.
func RatioFromInt(n int64) Ratio {
	return Ratio{v: new(big.Int).Mul(big.NewInt(n), OneScale)}
}

// ParseRatio parses a decimal string such as "1.5" or "29000" into a
// 1e18-scaled ratio. At most 18 fractional digits are accepted.
func ParseRatio(s string) (Ratio, error) {
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" && frac == "" {
		return Ratio{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || w.Sign() < 0 {
		return Ratio{}, fmt.Errorf("%w: %q", ErrParse, s)
	}
	w.Mul(w, OneScale)
	if frac != "" {
		if len(frac) > RatioDecimals {
			return Ratio{}, fmt.Errorf("%w: %q has more than %d fractional digits", ErrParse, s, RatioDecimals)
		}
		f, ok := new(big.Int).SetString(frac, 10)
		if !ok || f.Sign() < 0 {
			return Ratio{}, fmt.Errorf("%w: %q", ErrParse, s)
		}
		f.Mul(f, pow10(uint8(RatioDecimals-len(frac))))
		w.Add(w, f)
	}
	return Ratio{v: w}, nil
}

func (r Ratio) big() *big.Int {
	if r.v == nil {
		return new(big.Int)
	}
	return r.v
}

// BigInt returns a copy of the 1e18-scaled value.
func (r Ratio) BigInt() *big.Int { return new(big.Int).Set(r.big()) }

// Cmp compares r and other.
func (r Ratio) Cmp(other Ratio) int { return r.big().Cmp(other.big()) }

// IsZero reports whether the ratio is zero.
func (r Ratio) IsZero() bool { return r.v == nil || r.v.Sign() == 0 }

// GreaterThanOne reports whether r > 1.0.
func (r Ratio) GreaterThanOne() bool { return r.big().Cmp(OneScale) > 0 }

// String renders the ratio as a decimal string with trailing zeros trimmed.
func (r Ratio) String() string {
	q, rem := new(big.Int).QuoRem(r.big(), OneScale, new(big.Int))
	if rem.Sign() == 0 {
		return q.String()
	}
	frac := fmt.Sprintf("%018s", rem.String())
	frac = strings.TrimRight(frac, "0")
	return q.String() + "." + frac
}

// ScaleDecimals rescales v from one decimal precision to another,
// truncating toward zero when precision is lost.
func ScaleDecimals(v *big.Int, from, to uint8) *big.Int {
	out := new(big.Int).Set(v)
	switch {
	case from < to:
		out.Mul(out, pow10(to-from))
	case from > to:
		out.Quo(out, pow10(from-to))
	}
	return out
}

// ScaleDecimalsCeil rescales v like ScaleDecimals but rounds up when
// precision is lost.
func ScaleDecimalsCeil(v *big.Int, from, to uint8) *big.Int {
	if from <= to {
		return ScaleDecimals(v, from, to)
	}
	return ceilDiv(new(big.Int).Set(v), pow10(from-to))
}

func ceilDiv(num, den *big.Int) *big.Int {
	q, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// CeilDiv returns ceil(num/den) without mutating its arguments.
func CeilDiv(num, den *big.Int) *big.Int {
	return ceilDiv(new(big.Int).Set(num), den)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
