package modelstore

import (
	"fmt"
	"sort"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/classifier"
	"nlu-engine/internal/nlu/lexicon"
	"nlu-engine/internal/nlu/normalizer"
	"nlu-engine/internal/nlu/patterns"
	"nlu-engine/internal/nlu/resolver"
	"nlu-engine/internal/nlu/slotfiller"
)

// Model is a compiled bundle. Nothing mutates it after Load returns, so it
// may be shared by any number of concurrent queries.
type Model struct {
	version     string
	language    string
	fingerprint string
	intents     []models.Intent
	byName      map[string]models.Intent
	normalizer  *normalizer.Normalizer
	gazetteers  map[string]*resolver.Gazetteer
	classifier  *classifier.Classifier
	fillers     map[string]*slotfiller.Filler
	patterns    *patterns.Matcher
	lookup      *patterns.Lookup
	lexicon     *lexicon.Lexicon
	builtins    []string
}

func compile(b *Bundle, fingerprint string) (*Model, error) {
	norm, err := normalizer.New(b.Language)
	if err != nil {
		return nil, err
	}

	m := &Model{
		version:     b.ModelVersion,
		language:    b.Language,
		fingerprint: fingerprint,
		byName:      make(map[string]models.Intent, len(b.Intents)),
		normalizer:  norm,
		gazetteers:  make(map[string]*resolver.Gazetteer, len(b.Entities)),
		fillers:     make(map[string]*slotfiller.Filler, len(b.Intents)),
	}

	entities := make(map[string]models.CustomEntity, len(b.Entities))
	for name, e := range b.Entities {
		if models.IsBuiltinEntity(name) {
			return nil, fmt.Errorf("custom entity %q uses the builtin prefix", name)
		}
		e.Name = name
		entities[name] = e
		g, err := resolver.NewGazetteer(norm, e)
		if err != nil {
			return nil, err
		}
		m.gazetteers[name] = g
	}

	builtins := make(map[string]bool)
	names := make([]string, 0, len(b.Intents))
	for _, intent := range b.Intents {
		if _, dup := m.byName[intent.Name]; dup {
			return nil, fmt.Errorf("intent %q declared twice", intent.Name)
		}
		seen := make(map[string]bool, len(intent.Slots))
		for _, s := range intent.Slots {
			if seen[s.Name] {
				return nil, fmt.Errorf("intent %s declares slot %q twice", intent.Name, s.Name)
			}
			seen[s.Name] = true
			if _, ok := models.KindForEntity(s.Entity); !ok {
				return nil, fmt.Errorf("slot %s.%s uses unknown builtin entity %q", intent.Name, s.Name, s.Entity)
			}
			if models.IsBuiltinEntity(s.Entity) {
				builtins[s.Entity] = true
			} else if _, ok := entities[s.Entity]; !ok {
				return nil, fmt.Errorf("slot %s.%s uses undeclared entity %q", intent.Name, s.Name, s.Entity)
			}
		}
		m.byName[intent.Name] = intent
		m.intents = append(m.intents, intent)
		names = append(names, intent.Name)
	}
	sort.Slice(m.intents, func(i, j int) bool { return m.intents[i].Name < m.intents[j].Name })
	sort.Strings(names)

	for entity := range builtins {
		m.builtins = append(m.builtins, entity)
	}
	sort.Strings(m.builtins)

	m.lexicon, err = lexicon.New(norm, b.Stems, b.WordClusters)
	if err != nil {
		return nil, err
	}

	clf, err := classifier.New(b.IntentClassifier, names, b.StopWords, b.NullIntentThreshold)
	if err != nil {
		return nil, fmt.Errorf("intent classifier: %w", err)
	}
	if m.classifier, err = clf.WithLexicon(m.lexicon); err != nil {
		return nil, fmt.Errorf("intent classifier: %w", err)
	}

	for name := range b.SlotFillers {
		if _, ok := m.byName[name]; !ok {
			return nil, fmt.Errorf("slot filler for unknown intent %q", name)
		}
	}
	for _, intent := range m.intents {
		f, err := slotfiller.New(intent, b.SlotFillers[intent.Name])
		if err != nil {
			return nil, fmt.Errorf("slot filler %s: %w", intent.Name, err)
		}
		m.fillers[intent.Name] = f.WithLexicon(m.lexicon)
	}

	m.patterns, err = patterns.Compile(norm, m.intents, entities, b.Patterns)
	if err != nil {
		return nil, err
	}
	m.lookup, err = patterns.CompileLookup(norm, m.intents, b.StopWords, b.Lookup)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Version is the version marker the bundle was trained with.
func (m *Model) Version() string {
	return m.version
}

func (m *Model) Language() string {
	return m.language
}

// Fingerprint identifies the bundle bytes the model was compiled from.
func (m *Model) Fingerprint() string {
	return m.fingerprint
}

// Intents returns the declared intents sorted by name.
func (m *Model) Intents() []models.Intent {
	out := make([]models.Intent, len(m.intents))
	copy(out, m.intents)
	return out
}

func (m *Model) IntentNames() []string {
	out := make([]string, len(m.intents))
	for i, in := range m.intents {
		out[i] = in.Name
	}
	return out
}

func (m *Model) Intent(name string) (models.Intent, bool) {
	in, ok := m.byName[name]
	return in, ok
}

func (m *Model) Normalizer() *normalizer.Normalizer {
	return m.normalizer
}

func (m *Model) Gazetteer(entity string) (*resolver.Gazetteer, bool) {
	g, ok := m.gazetteers[entity]
	return g, ok
}

// Gazetteers returns every custom entity matcher ordered by name.
func (m *Model) Gazetteers() []*resolver.Gazetteer {
	out := make([]*resolver.Gazetteer, 0, len(m.gazetteers))
	for _, g := range m.gazetteers {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// BuiltinEntities lists the builtin entity types referenced by any slot.
func (m *Model) BuiltinEntities() []string {
	return append([]string(nil), m.builtins...)
}

func (m *Model) Classifier() *classifier.Classifier {
	return m.classifier
}

// SlotFiller returns the filler for a declared intent, or nil.
func (m *Model) SlotFiller(intent string) *slotfiller.Filler {
	return m.fillers[intent]
}

func (m *Model) Patterns() *patterns.Matcher {
	return m.patterns
}

// Lookup returns the exact-match table, or nil when the bundle has none.
func (m *Model) Lookup() *patterns.Lookup {
	return m.lookup
}

func (m *Model) Lexicon() *lexicon.Lexicon {
	return m.lexicon
}
