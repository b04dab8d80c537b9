// Package assembler composes classifier and slot filler outputs into parse
// results.
package assembler

import (
	"sort"

	"nlu-engine/internal/common/errors"
	"nlu-engine/internal/models"
)

// Assemble builds a ParseResult with slots ordered by their start offset.
// The slot list is never nil so it projects to an empty JSON array.
func Assemble(input string, intent models.IntentClassificationResult, slots []models.Slot) models.ParseResult {
	return models.ParseResult{
		Input:  input,
		Intent: intent,
		Slots:  AssembleSlots(slots),
	}
}

// AssembleIntents returns the ranked classifier results for an intents-only
// query, copied so the caller owns them.
func AssembleIntents(ranking []models.IntentClassificationResult) []models.IntentClassificationResult {
	out := make([]models.IntentClassificationResult, len(ranking))
	copy(out, ranking)
	return out
}

// AssembleSlots sorts a copy of slots by RangeStart, then RangeEnd.
func AssembleSlots(slots []models.Slot) []models.Slot {
	out := make([]models.Slot, len(slots))
	copy(out, slots)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RangeStart != out[j].RangeStart {
			return out[i].RangeStart < out[j].RangeStart
		}
		return out[i].RangeEnd < out[j].RangeEnd
	})
	return out
}

// IntentLookup resolves a declared intent by name.
type IntentLookup interface {
	Intent(name string) (models.Intent, bool)
}

// RequireIntent is the guard for slots-only queries.
func RequireIntent(lookup IntentLookup, name string) (models.Intent, error) {
	if name == "" {
		return models.Intent{}, errors.NewInvalidInputError("intent name is required")
	}
	intent, ok := lookup.Intent(name)
	if !ok {
		return models.Intent{}, errors.NewIntentNotFoundError(name)
	}
	return intent, nil
}
