package era

import (
	"math/big"
	"strings"
)

// LovelacePerADA is the number of lovelace in one ADA.
const LovelacePerADA = 1_000_000

// PPM is the denominator for ratios carried as integer parts per million.
const PPM = 1_000_000

// FormatADA formats an amount of lovelace as ADA with six decimals and
// thousands separators, e.g. "1,234.500000 ADA". A nil amount formats as
// zero.
func FormatADA(lovelace *big.Int) string {
	if lovelace == nil {
		lovelace = new(big.Int)
	}
	abs := new(big.Int).Abs(lovelace)
	whole, frac := new(big.Int).QuoRem(abs, big.NewInt(LovelacePerADA), new(big.Int))

	var b strings.Builder
	if lovelace.Sign() < 0 {
		b.WriteByte('-')
	}
	b.WriteString(group(whole.String()))
	b.WriteByte('.')
	fs := frac.String()
	b.WriteString(strings.Repeat("0", 6-len(fs)))
	b.WriteString(fs)
	b.WriteString(" ADA")
	return b.String()
}

// FormatPercent formats a ratio as a percentage with two decimals, e.g.
// 0.035 as "3.50%". A nil ratio formats as zero.
func FormatPercent(ratio *big.Rat) string {
	if ratio == nil {
		ratio = new(big.Rat)
	}
	pct := new(big.Rat).Mul(ratio, big.NewRat(100, 1))
	return pct.FloatString(2) + "%"
}

// RatioPPM converts an integer count of parts per million to a ratio.
func RatioPPM(ppm *big.Int) *big.Rat {
	if ppm == nil {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(ppm, big.NewInt(PPM))
}

func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
