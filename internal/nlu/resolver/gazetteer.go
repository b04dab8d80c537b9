package resolver

import (
	"fmt"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/normalizer"
)

// Gazetteer matches the values of a custom entity and maps synonyms to
// their canonical value.
type Gazetteer struct {
	name       string
	extensible bool
	entries    map[string]string
	maxTokens  int
}

// NewGazetteer indexes the folded token form of every value and synonym.
func NewGazetteer(norm *normalizer.Normalizer, entity models.CustomEntity) (*Gazetteer, error) {
	g := &Gazetteer{
		name:       entity.Name,
		extensible: entity.AutomaticallyExtensible,
		entries:    make(map[string]string),
	}
	for _, v := range entity.Values {
		for _, phrase := range append([]string{v.Value}, v.Synonyms...) {
			tokens, err := norm.Tokenize(phrase)
			if err != nil {
				return nil, fmt.Errorf("entity %s: %w", entity.Name, err)
			}
			if len(tokens) == 0 {
				continue
			}
			key := normalizer.Join(tokens)
			// First declaration wins when two values share a synonym.
			if _, exists := g.entries[key]; !exists {
				g.entries[key] = v.Value
			}
			g.maxTokens = max(g.maxTokens, len(tokens))
		}
	}
	return g, nil
}

func (g *Gazetteer) Name() string {
	return g.name
}

func (g *Gazetteer) Extensible() bool {
	return g.extensible
}

// Canonical looks up the exact token run.
func (g *Gazetteer) Canonical(tokens []normalizer.Token) (string, bool) {
	v, ok := g.entries[normalizer.Join(tokens)]
	return v, ok
}

// Resolve returns the canonical value for a slot span. Unknown text is kept
// verbatim for extensible entities and rejected otherwise.
func (g *Gazetteer) Resolve(tokens []normalizer.Token, raw string) (models.SlotValue, bool) {
	if v, ok := g.Canonical(tokens); ok {
		return models.CustomValue{Value: v}, true
	}
	if g.extensible && raw != "" {
		return models.CustomValue{Value: raw}, true
	}
	return nil, false
}

// Match returns leftmost longest non-overlapping value mentions.
func (g *Gazetteer) Match(tokens []normalizer.Token) []Match {
	var matches []Match
	for start := 0; start < len(tokens); {
		found := 0
		var value string
		for end := min(len(tokens), start+g.maxTokens); end > start; end-- {
			if v, ok := g.Canonical(tokens[start:end]); ok {
				found, value = end, v
				break
			}
		}
		if found == 0 {
			start++
			continue
		}
		matches = append(matches, Match{
			Entity: g.name,
			Start:  start,
			End:    found,
			Value:  models.CustomValue{Value: value},
		})
		start = found
	}
	return matches
}
