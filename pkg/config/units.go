package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration read from YAML. Besides the units of
// time.ParseDuration it accepts days (d) and weeks (w), as cache lifetimes
// are usually counted in those.
type Duration time.Duration

// Units beyond time.ParseDuration.
const (
	Day  = 24 * time.Hour
	Week = 7 * Day
)

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses "90s", "1.5h", "7d" or compounds like "2d12h".
// An empty string is zero.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if !strings.ContainsAny(s, "dw") {
		return time.ParseDuration(s)
	}
	return parseCompound(s)
}

var durationUnits = map[string]time.Duration{
	"ns": time.Nanosecond,
	"us": time.Microsecond,
	"µs": time.Microsecond,
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  Day,
	"w":  Week,
}

var durationTerm = regexp.MustCompile(`([0-9.]+)([a-zµ]+)`)

// parseCompound sums number/unit terms. Text between terms is ignored.
func parseCompound(s string) (time.Duration, error) {
	terms := durationTerm.FindAllStringSubmatch(s, -1)
	if len(terms) == 0 {
		return 0, fmt.Errorf("invalid duration format: %s", s)
	}

	var total time.Duration
	for _, term := range terms {
		val, err := strconv.ParseFloat(term[1], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number in duration: %s", term[1])
		}
		unit, ok := durationUnits[term[2]]
		if !ok {
			return 0, fmt.Errorf("unknown unit: %s", term[2])
		}
		total += time.Duration(val * float64(unit))
	}
	return total, nil
}

// Distance is a length in meters read from YAML as a plain number or with a
// unit, e.g. "25m" or "0.5km".
type Distance float64

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Distance) UnmarshalYAML(value *yaml.Node) error {
	var f float64
	if err := value.Decode(&f); err == nil {
		*d = Distance(f)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	m, err := ParseDistance(s)
	if err != nil {
		return err
	}
	*d = Distance(m)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Distance) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// String renders the distance in meters with the unit, as ParseDistance
// reads it back.
func (d Distance) String() string {
	return strconv.FormatFloat(float64(d), 'f', -1, 64) + "m"
}

var distanceUnits = []struct {
	suffix string
	meters float64
}{
	// longer suffixes first: "km" and "nm" also end in "m"
	{"km", 1000},
	{"nm", 1852},
	{"ft", 0.3048},
	{"m", 1},
}

// ParseDistance parses a distance such as "250m", "1.5km" or "3nm" into
// meters. Values without a unit are meters.
func ParseDistance(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	num, mult := s, 1.0
	for _, u := range distanceUnits {
		if strings.HasSuffix(s, u.suffix) {
			num, mult = strings.TrimSuffix(s, u.suffix), u.meters
			break
		}
	}

	val, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid distance number: %w", err)
	}
	return val * mult, nil
}
