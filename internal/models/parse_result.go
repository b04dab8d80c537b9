// internal/models/parse_result.go
package models

import (
	"encoding/json"
	"fmt"
)

// Intent is a model intent together with its declared slots.
type Intent struct {
	Name  string       `json:"name"`
	Slots []SlotSchema `json:"slots"`
}

// SlotSchema binds a slot name to an entity type.
type SlotSchema struct {
	Name   string `json:"name"`
	Entity string `json:"entity"`
}

// IntentClassificationResult is one ranked classifier outcome. A nil
// IntentName is the null intent.
type IntentClassificationResult struct {
	IntentName      *string `json:"intentName"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

// NoIntent builds a null intent result with the given score.
func NoIntent(score float64) IntentClassificationResult {
	return IntentClassificationResult{ConfidenceScore: score}
}

// NamedIntent builds a result for a recognized intent.
func NamedIntent(name string, score float64) IntentClassificationResult {
	return IntentClassificationResult{IntentName: &name, ConfidenceScore: score}
}

func (r IntentClassificationResult) IsNone() bool {
	return r.IntentName == nil
}

// Name returns the intent name, or "" for the null intent.
func (r IntentClassificationResult) Name() string {
	if r.IntentName == nil {
		return ""
	}
	return *r.IntentName
}

// Slot is a typed span of the input bound to an intent parameter.
// RangeStart and RangeEnd are byte offsets into the input.
type Slot struct {
	RawValue        string    `json:"rawValue"`
	Value           SlotValue `json:"value"`
	Entity          string    `json:"entity"`
	SlotName        string    `json:"slotName"`
	RangeStart      int       `json:"rangeStart"`
	RangeEnd        int       `json:"rangeEnd"`
	ConfidenceScore float64   `json:"confidenceScore"`
}

type slotJSON struct {
	RawValue        string          `json:"rawValue"`
	Value           json.RawMessage `json:"value"`
	Entity          string          `json:"entity"`
	SlotName        string          `json:"slotName"`
	RangeStart      int             `json:"rangeStart"`
	RangeEnd        int             `json:"rangeEnd"`
	ConfidenceScore float64         `json:"confidenceScore"`
}

func (s Slot) MarshalJSON() ([]byte, error) {
	value, err := MarshalSlotValue(s.Value)
	if err != nil {
		return nil, fmt.Errorf("slot %s: %w", s.SlotName, err)
	}
	return json.Marshal(slotJSON{
		RawValue:        s.RawValue,
		Value:           value,
		Entity:          s.Entity,
		SlotName:        s.SlotName,
		RangeStart:      s.RangeStart,
		RangeEnd:        s.RangeEnd,
		ConfidenceScore: s.ConfidenceScore,
	})
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	var raw slotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := UnmarshalSlotValue(raw.Value)
	if err != nil {
		return fmt.Errorf("slot %s: %w", raw.SlotName, err)
	}
	*s = Slot{
		RawValue:        raw.RawValue,
		Value:           value,
		Entity:          raw.Entity,
		SlotName:        raw.SlotName,
		RangeStart:      raw.RangeStart,
		RangeEnd:        raw.RangeEnd,
		ConfidenceScore: raw.ConfidenceScore,
	}
	return nil
}

// ParseResult is the outcome of a single query.
type ParseResult struct {
	Input  string                     `json:"input"`
	Intent IntentClassificationResult `json:"intent"`
	Slots  []Slot                     `json:"slots"`
}

// ParseAlternatives holds the best parse followed by lower-ranked intent parses.
type ParseAlternatives struct {
	ParseResult
	Alternatives []ParseResult `json:"alternatives"`
}
