package reconcile

import (
	"strconv"
	"strings"
)

var quantityCleaner = strings.NewReplacer("\u00a0", "", " ", "", ",", ".")

// ParseQuantity converts a locale-formatted quantity into a float.
// Non-breaking and ordinary spaces are removed and a comma decimal separator
// becomes a period. "", "+" and "-" are treated as no value.
func ParseQuantity(s string) (float64, bool) {
	s = strings.TrimSpace(quantityCleaner.Replace(s))
	switch s {
	case "", "+", "-":
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
