// Package fixedpoint implements the UQ112x112 binary fixed point format used
// for pair prices: a 224-bit unsigned value whose low 112 bits are fractional.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

// Resolution is the number of fractional bits.
const Resolution = 112

const (
	operandBits = 112
	backingBits = 224
	decodeBits  = 144
)

var (
	// ErrDivisionByZero is returned when a fraction has a zero denominator.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
	// ErrOverflow is returned when a value does not fit its target width.
	ErrOverflow = errors.New("fixedpoint: overflow")
)

var backingMask = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), backingBits), uint256.NewInt(1))

// UQ112x112 is an unsigned fixed point number with 112 integer and 112
// fractional bits. The zero value is 0.
type UQ112x112 struct {
	x uint256.Int
}

// Fraction returns numerator / denominator. Both operands are uint112
// quantities, so numerator << 112 always fits and the division is exact up to
// the final truncation.
func Fraction(numerator, denominator *uint256.Int) (UQ112x112, error) {
	if denominator.IsZero() {
		return UQ112x112{}, ErrDivisionByZero
	}
	if numerator.BitLen() > operandBits || denominator.BitLen() > operandBits {
		return UQ112x112{}, ErrOverflow
	}
	var f UQ112x112
	f.x.Lsh(numerator, Resolution)
	f.x.Div(&f.x, denominator)
	return f, nil
}

// FromRaw interprets raw as an encoded UQ112x112, discarding bits above the
// 224-bit backing width.
func FromRaw(raw *uint256.Int) UQ112x112 {
	var f UQ112x112
	f.x.And(raw, backingMask)
	return f
}

// Raw returns a copy of the encoded value.
func (f UQ112x112) Raw() *uint256.Int {
	return new(uint256.Int).Set(&f.x)
}

// IsZero reports whether f is 0.
func (f UQ112x112) IsZero() bool {
	return f.x.IsZero()
}

// Equal reports whether f and g encode the same value.
func (f UQ112x112) Equal(g UQ112x112) bool {
	return f.x.Eq(&g.x)
}

// Mul multiplies f by an integer. The product is kept at full width.
func (f UQ112x112) Mul(y *uint256.Int) Product {
	p := new(big.Int).Mul(f.x.ToBig(), y.ToBig())
	return Product{v: p}
}

// Decimal renders f in base 10 with prec fractional digits.
func (f UQ112x112) Decimal(prec int) string {
	denom := new(big.Int).Lsh(big.NewInt(1), Resolution)
	return new(big.Rat).SetFrac(f.x.ToBig(), denom).FloatString(prec)
}

// String implements fmt.Stringer.
func (f UQ112x112) String() string {
	return f.Decimal(18)
}

// Product is the wide result of multiplying a UQ112x112 by an integer.
type Product struct {
	v *big.Int
}

// Decode144 drops the fractional bits of p and returns its integer part,
// which must fit in 144 bits.
func (p Product) Decode144() (*uint256.Int, error) {
	if p.v == nil {
		return new(uint256.Int), nil
	}
	out := new(big.Int).Rsh(p.v, Resolution)
	if out.BitLen() > decodeBits {
		return nil, ErrOverflow
	}
	v, _ := uint256.FromBig(out)
	return v, nil
}
