package control

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue renders a reading as the decimal wire payload, e.g. "23.5" or "41232".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseValue decodes a decimal payload. Surrounding whitespace is ignored.
func ParseValue(payload []byte) (float64, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", ErrDecode, truncate(s))
	}
	return v, nil
}

// ParseInt decodes an integer payload such as a duty value.
func ParseInt(payload []byte) (int, error) {
	s := strings.TrimSpace(string(payload))
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrDecode, truncate(s))
	}
	return v, nil
}

// truncate keeps hostile payloads out of logs.
func truncate(s string) string {
	const limit = 32
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
