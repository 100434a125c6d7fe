package bsonx

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/umberlabs/bsonx/errs"
)

// Decimal128 is a 128-bit IEEE 754-2008 decimal floating point value in
// binary integer decimal (BID) encoding. Arithmetic is out of scope;
// the type supports construction from raw halves, wire transport, and
// lossless string conversion.
type Decimal128 struct {
	h, l uint64
}

const (
	decimal128MinExp    = -6176
	decimal128MaxExp    = 6111
	decimal128ExpBias   = 6176
	decimal128MaxDigits = 34
)

// NewDecimal128 creates a Decimal128 from the high and low 64 bits of
// the BID encoding.
func NewDecimal128(h, l uint64) Decimal128 {
	return Decimal128{h: h, l: l}
}

// GetBytes returns the high and low 64 bits of the BID encoding.
func (d Decimal128) GetBytes() (uint64, uint64) {
	return d.h, d.l
}

// IsNaN reports whether d is a NaN.
func (d Decimal128) IsNaN() bool {
	return d.h>>58&0x1F == 0x1F
}

// IsInf reports whether d is an infinity: +1 for positive, -1 for
// negative, 0 for finite or NaN.
func (d Decimal128) IsInf() int {
	if d.h>>58&0x1F != 0x1E {
		return 0
	}
	if d.h>>63 == 1 {
		return -1
	}

	return 1
}

// String renders the value per the IEEE 754-2008 decimal-to-string
// rules: scientific notation when the exponent is positive or the
// adjusted exponent is below -6, plain decimal notation otherwise.
func (d Decimal128) String() string {
	if d.IsNaN() {
		return "NaN"
	}

	sign := ""
	if d.h>>63 == 1 {
		sign = "-"
	}
	if d.IsInf() != 0 {
		return sign + "Infinity"
	}

	var exp int
	high, low := d.h, d.l
	if high>>61&3 == 3 {
		// Coefficients with the alternate combination form exceed 34
		// decimal digits and are treated as zero.
		exp = int(high>>47&(1<<14-1)) - decimal128ExpBias
		high, low = 0, 0
	} else {
		exp = int(high>>49&(1<<14-1)) - decimal128ExpBias
		high &= 1<<49 - 1
	}

	coeff := new(big.Int).SetUint64(high)
	coeff.Lsh(coeff, 64)
	coeff.Or(coeff, new(big.Int).SetUint64(low))
	digits := coeff.String()

	adjusted := exp + len(digits) - 1
	var sb strings.Builder
	sb.WriteString(sign)
	switch {
	case exp > 0 || adjusted < -6:
		sb.WriteString(digits[:1])
		if len(digits) > 1 {
			sb.WriteByte('.')
			sb.WriteString(digits[1:])
		}
		sb.WriteByte('E')
		if adjusted >= 0 {
			sb.WriteByte('+')
		}
		sb.WriteString(strconv.Itoa(adjusted))
	case exp == 0:
		sb.WriteString(digits)
	default:
		point := len(digits) + exp
		if point > 0 {
			sb.WriteString(digits[:point])
			sb.WriteByte('.')
			sb.WriteString(digits[point:])
		} else {
			sb.WriteString("0.")
			sb.WriteString(strings.Repeat("0", -point))
			sb.WriteString(digits)
		}
	}

	return sb.String()
}

// ParseDecimal128 parses the string forms produced by String:
// "NaN", optionally signed "Infinity"/"Inf", and finite decimal numbers
// with an optional fraction and exponent. The coefficient is limited to
// 34 significant digits; out-of-range exponents are clamped by shifting
// zeros when that is exact, and rejected otherwise.
func ParseDecimal128(s string) (Decimal128, error) {
	orig := s
	if s == "" {
		return Decimal128{}, parseErr(orig, "empty string")
	}

	var negative bool
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	switch strings.ToLower(s) {
	case "nan":
		return Decimal128{h: 0x7C00000000000000}, nil
	case "inf", "infinity":
		h := uint64(0x7800000000000000)
		if negative {
			h |= 1 << 63
		}
		return Decimal128{h: h}, nil
	}

	mantissa := s
	exp := 0
	if idx := strings.IndexAny(s, "Ee"); idx >= 0 {
		parsed, err := strconv.Atoi(s[idx+1:])
		if err != nil {
			return Decimal128{}, parseErr(orig, "invalid exponent")
		}
		exp = parsed
		mantissa = s[:idx]
	}

	intPart, fracPart, hasDot := strings.Cut(mantissa, ".")
	digits := intPart + fracPart
	if digits == "" || (hasDot && fracPart == "" && intPart == "") {
		return Decimal128{}, parseErr(orig, "no digits")
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Decimal128{}, parseErr(orig, "invalid character")
		}
	}
	exp -= len(fracPart)

	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}

	// Reduce over-long coefficients and clamp the exponent by shifting
	// powers of ten, but only when the shift is exact.
	for len(digits) > decimal128MaxDigits || exp < decimal128MinExp {
		if digits == "0" {
			exp = decimal128MinExp
			break
		}
		if !strings.HasSuffix(digits, "0") {
			return Decimal128{}, parseErr(orig, "coefficient does not fit in 34 decimal digits")
		}
		digits = digits[:len(digits)-1]
		exp++
	}
	for exp > decimal128MaxExp {
		if digits == "0" {
			exp = decimal128MaxExp
			break
		}
		if len(digits) >= decimal128MaxDigits {
			return Decimal128{}, parseErr(orig, "exponent exceeds the representable range")
		}
		digits += "0"
		exp--
	}
	if exp < decimal128MinExp || exp > decimal128MaxExp {
		return Decimal128{}, parseErr(orig, "exponent exceeds the representable range")
	}

	coeff, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return Decimal128{}, parseErr(orig, "invalid coefficient")
	}

	if coeff.BitLen() > 113 {
		return Decimal128{}, parseErr(orig, "coefficient does not fit in 34 decimal digits")
	}
	lo := lower64(coeff)
	hi := new(big.Int).Rsh(coeff, 64).Uint64()

	h := hi | uint64(exp+decimal128ExpBias)<<49
	if negative {
		h |= 1 << 63
	}

	return Decimal128{h: h, l: lo}, nil
}

func lower64(v *big.Int) uint64 {
	return new(big.Int).And(v, new(big.Int).SetUint64(^uint64(0))).Uint64()
}

func parseErr(s, reason string) error {
	return errs.Newf(errs.KindExtJSONShape, "parsing decimal128 %q: %s", s, reason)
}
