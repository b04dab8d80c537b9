package slotfiller

import (
	"fmt"
	"strings"
)

// Scheme is a tagging scheme for slot labels.
type Scheme int

const (
	SchemeIO Scheme = iota
	SchemeBIO
	SchemeBILOU
)

const outside = "O"

func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(s) {
	case "io":
		return SchemeIO, nil
	case "bio", "":
		return SchemeBIO, nil
	case "bilou":
		return SchemeBILOU, nil
	}
	return 0, fmt.Errorf("unknown tagging scheme %q", s)
}

func (s Scheme) String() string {
	switch s {
	case SchemeIO:
		return "io"
	case SchemeBILOU:
		return "bilou"
	default:
		return "bio"
	}
}

func (s Scheme) prefixes() []string {
	switch s {
	case SchemeIO:
		return []string{"I"}
	case SchemeBILOU:
		return []string{"B", "I", "L", "U"}
	default:
		return []string{"B", "I"}
	}
}

// labels lists O followed by every prefixed label for each slot.
func (s Scheme) labels(slots []string) []string {
	out := []string{outside}
	for _, slot := range slots {
		for _, p := range s.prefixes() {
			out = append(out, p+"-"+slot)
		}
	}
	return out
}

type label struct {
	prefix string
	slot   string
}

func splitLabel(l string) label {
	if l == outside {
		return label{}
	}
	prefix, slot, _ := strings.Cut(l, "-")
	return label{prefix: prefix, slot: slot}
}

// allowed reports whether to may follow from; from is nil at the sequence start.
func (s Scheme) allowed(from *label, to label) bool {
	switch s {
	case SchemeBIO:
		if to.prefix != "I" {
			return true
		}
		return from != nil && from.slot == to.slot
	case SchemeBILOU:
		continuing := from != nil && (from.prefix == "B" || from.prefix == "I")
		if to.prefix == "I" || to.prefix == "L" {
			return continuing && from.slot == to.slot
		}
		return !continuing
	}
	return true
}

// allowedEnd reports whether a sequence may finish on l.
func (s Scheme) allowedEnd(l label) bool {
	if s == SchemeBILOU {
		return l.prefix != "B" && l.prefix != "I"
	}
	return true
}

// span is a decoded slot over tokens [start, end).
type span struct {
	slot       string
	start, end int
}

// decode merges contiguous labels of one slot into maximal spans.
func (s Scheme) decode(path []label) []span {
	var (
		out     []span
		current *span
	)
	closeSpan := func() {
		if current != nil {
			out = append(out, *current)
			current = nil
		}
	}
	for i, l := range path {
		if l.slot == "" {
			closeSpan()
			continue
		}
		startsNew := current == nil || current.slot != l.slot || l.prefix == "B" || l.prefix == "U"
		if startsNew {
			closeSpan()
			current = &span{slot: l.slot, start: i}
		}
		current.end = i + 1
		if l.prefix == "L" || l.prefix == "U" {
			closeSpan()
		}
	}
	closeSpan()
	return out
}
