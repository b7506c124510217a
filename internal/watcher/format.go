package watcher

import (
	"math/big"

	"twapOracle/internal/fixedpoint"
)

const ratioScale = 18

// scaledPrice renders a price of base units out per base unit in as whole
// tokens out per whole token in.
func scaledPrice(price fixedpoint.UQ112x112, decimalsIn, decimalsOut uint8) string {
	rat := new(big.Rat).SetFrac(price.Raw().ToBig(), new(big.Int).Lsh(big.NewInt(1), fixedpoint.Resolution))
	if decimalsIn != decimalsOut {
		rat.Mul(rat, pow10Rat(int(decimalsIn)-int(decimalsOut)))
	}
	return rat.FloatString(ratioScale)
}

func pow10Rat(exp int) *big.Rat {
	if exp >= 0 {
		return new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	}
	return new(big.Rat).SetFrac(big.NewInt(1), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
}
