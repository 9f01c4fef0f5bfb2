package calc

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders f with the shortest digits that round-trip, in plain
// notation for 1e-6 <= |f| < 1e21 and in exponent notation ("1e+21",
// "1.5e-7") otherwise. Negative zero prints as "0".
func FormatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	// Shortest form as d.ddde±XX; the value is 0.digits × 10^n.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, expText, _ := strings.Cut(s, "e")
	digits := strings.Replace(mantissa, ".", "", 1)
	exp, _ := strconv.Atoi(expText)
	n := exp + 1
	k := len(digits)

	var b strings.Builder
	b.WriteString(sign)
	switch {
	case k <= n && n <= 21:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", n-k))
	case 0 < n && n <= 21:
		b.WriteString(digits[:n])
		b.WriteByte('.')
		b.WriteString(digits[n:])
	case -6 < n && n <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -n))
		b.WriteString(digits)
	default:
		b.WriteString(digits[:1])
		if k > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		if n-1 >= 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(n - 1))
	}
	return b.String()
}

// FormatInt renders v in base, hex digits uppercase.
func FormatInt(v int64, base Base) string {
	return strings.ToUpper(strconv.FormatInt(v, base.Radix()))
}

// ParseInt reads s as an integer in base. A leading '-' is allowed.
func ParseInt(s string, base Base) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), base.Radix(), 64)
}
