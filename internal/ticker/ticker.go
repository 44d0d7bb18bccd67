// Package ticker implements the single normalization rule every store
// and cache lookup in this service applies before touching a ticker
// symbol, so no non-normalized ticker ever reaches storage.
package ticker

import (
	"fmt"
	"strings"
)

// ErrInvalidFormat is returned when a string cannot be normalized into
// a valid ticker.
var ErrInvalidFormat = fmt.Errorf("invalid ticker format")

// Normalize upper-cases t and validates it is 1-5 ASCII letters.
// Normalize is idempotent: Normalize(Normalize(t)) == Normalize(t) for
// any t that normalizes successfully.
func Normalize(t string) (string, error) {
	upper := strings.ToUpper(strings.TrimSpace(t))

	if len(upper) < 1 || len(upper) > 5 {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, t)
	}

	for _, r := range upper {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidFormat, t)
		}
	}

	return upper, nil
}
