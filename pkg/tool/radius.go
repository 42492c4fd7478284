package tool

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"

	"multiselect/pkg/config"
	"multiselect/pkg/geo"
)

// ParseRadius validates user input for the buffer radius. Plain numbers are
// meters; "m" and "km" suffixes are accepted. A radius of zero or less is
// rejected when the target is made of points or lines.
func ParseRadius(input string, target orb.Geometry) (float64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, fmt.Errorf("%w: missing value", ErrInvalidRadius)
	}
	r, err := config.ParseDistance(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidRadius, input)
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidRadius, input)
	}
	if r <= 0 && target != nil && geo.IsPointOrLine(target) {
		return 0, fmt.Errorf("%w: must be positive for points and lines", ErrInvalidRadius)
	}
	return r, nil
}
