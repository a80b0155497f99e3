// Package pagination provides bounded limit/offset pagination parsing.
package pagination

import "strconv"

const (
	// DefaultLimit is the page size used when the caller does not supply one.
	DefaultLimit = 50
	// MaxLimit bounds page sizes to avoid unbounded scans.
	MaxLimit = 100
)

// Params is a parsed, bounded pagination request.
type Params struct {
	Limit  int
	Offset int
}

// Parse converts raw limit/offset query values into bounded Params.
// Invalid or missing values fall back to defaults; limits are capped
// at MaxLimit and offsets are clamped at zero.
func Parse(rawLimit, rawOffset string) Params {
	p := Params{Limit: DefaultLimit}

	if rawLimit != "" {
		if n, err := strconv.Atoi(rawLimit); err == nil && n > 0 {
			p.Limit = n
		}
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}

	if rawOffset != "" {
		if n, err := strconv.Atoi(rawOffset); err == nil && n > 0 {
			p.Offset = n
		}
	}

	return p
}
