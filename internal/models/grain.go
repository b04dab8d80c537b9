// internal/models/grain.go
package models

import (
	"fmt"
	"strings"
)

// Grain is the granularity of a resolved time value. Lower values are coarser.
type Grain int

const (
	GrainYear Grain = iota
	GrainQuarter
	GrainMonth
	GrainWeek
	GrainDay
	GrainHour
	GrainMinute
	GrainSecond
)

var grainNames = [...]string{"YEAR", "QUARTER", "MONTH", "WEEK", "DAY", "HOUR", "MINUTE", "SECOND"}

func (g Grain) String() string {
	if g < GrainYear || g > GrainSecond {
		return fmt.Sprintf("Grain(%d)", int(g))
	}
	return grainNames[g]
}

// CoarserThan reports whether g describes a larger unit than other.
func (g Grain) CoarserThan(other Grain) bool {
	return g < other
}

func (g Grain) MarshalText() ([]byte, error) {
	if g < GrainYear || g > GrainSecond {
		return nil, fmt.Errorf("invalid grain %d", int(g))
	}
	return []byte(grainNames[g]), nil
}

func (g *Grain) UnmarshalText(text []byte) error {
	name := strings.ToUpper(string(text))
	for i, n := range grainNames {
		if n == name {
			*g = Grain(i)
			return nil
		}
	}
	return fmt.Errorf("unknown grain %q", string(text))
}

// Precision tells whether a resolved magnitude or instant was stated exactly.
type Precision int

const (
	PrecisionApproximate Precision = iota
	PrecisionExact
)

func (p Precision) String() string {
	switch p {
	case PrecisionApproximate:
		return "APPROXIMATE"
	case PrecisionExact:
		return "EXACT"
	default:
		return fmt.Sprintf("Precision(%d)", int(p))
	}
}

func (p Precision) MarshalText() ([]byte, error) {
	switch p {
	case PrecisionApproximate, PrecisionExact:
		return []byte(p.String()), nil
	}
	return nil, fmt.Errorf("invalid precision %d", int(p))
}

func (p *Precision) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "APPROXIMATE":
		*p = PrecisionApproximate
	case "EXACT":
		*p = PrecisionExact
	default:
		return fmt.Errorf("unknown precision %q", string(text))
	}
	return nil
}
