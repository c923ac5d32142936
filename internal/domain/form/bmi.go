package form

import (
	"strconv"
	"strings"
)

// NoValue is displayed in place of a derived value that cannot be computed.
const NoValue = "-"

// ParseDecimal reads the leading decimal number of s, accepting a comma as
// the decimal separator. Trailing text such as units is ignored.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits, dot := 0, false
	for ; end < len(s); end++ {
		c := s[end]
		if c >= '0' && c <= '9' {
			digits++
			continue
		}
		if c == '.' && !dot {
			dot = true
			continue
		}
		break
	}
	if digits == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLeadingInt reads the leading integer of s ("500ml" is 500).
func ParseLeadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// BMI computes weight over height squared. It is defined only when both
// inputs are positive numbers.
func BMI(weight, height string) (float64, bool) {
	w, ok := ParseDecimal(weight)
	if !ok || w <= 0 {
		return 0, false
	}
	h, ok := ParseDecimal(height)
	if !ok || h <= 0 {
		return 0, false
	}
	return w / (h * h), true
}

// FormatBMI renders the BMI with one decimal place, or NoValue.
func FormatBMI(weight, height string) string {
	v, ok := BMI(weight, height)
	if !ok {
		return NoValue
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
