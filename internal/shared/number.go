package shared

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is a float64 decoded leniently from JSON. Records written by older
// clients carry quantities and prices as strings, or omit them; both decode
// without error and anything unparsable becomes 0.
type Number float64

// UnmarshalJSON accepts a JSON number, a numeric string or null.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) >= 2 && data[0] == '"' && data[len(data)-1] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
		*n = Number(ParseNumber(s))
		return nil
	}
	*n = Number(ParseNumber(string(data)))
	return nil
}

// Float64 returns the underlying value.
func (n Number) Float64() float64 { return float64(n) }

// ParseNumber parses s as a decimal number and returns 0 when it cannot.
// A lone comma is read as the decimal separator ("12,5" == 12.5).
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return 0
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
		s = strings.Replace(s, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// NonNegative clamps v at zero.
func NonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
