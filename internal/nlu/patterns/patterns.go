// Package patterns matches utterances against per-intent templates such as
// "reserve a table for {party_size} people" before any statistical model runs.
package patterns

import (
	"fmt"
	"regexp"
	"sort"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/normalizer"
	"nlu-engine/internal/nlu/resolver"
)

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// maxSlotTokens bounds how many tokens a placeholder may absorb.
const maxSlotTokens = 8

type part struct {
	word   string
	slot   string
	entity string
}

type template struct {
	intent string
	source string
	parts  []part
}

// Matcher holds compiled templates. It is immutable.
type Matcher struct {
	templates  []template
	extensible map[string]bool
}

// Span is a slot bound by a template over tokens [Start, End).
type Span struct {
	SlotName string
	Entity   string
	Start    int
	End      int
}

// Result is a template match.
type Result struct {
	Intent string
	Slots  []Span
}

// Compile tokenizes every template with norm. Placeholders must name a slot
// declared on the template's intent.
func Compile(norm *normalizer.Normalizer, intents []models.Intent, entities map[string]models.CustomEntity, byIntent map[string][]string) (*Matcher, error) {
	declared := make(map[string]models.Intent, len(intents))
	for _, in := range intents {
		declared[in.Name] = in
	}

	m := &Matcher{extensible: make(map[string]bool, len(entities))}
	for name, e := range entities {
		m.extensible[name] = e.AutomaticallyExtensible
	}

	intentNames := make([]string, 0, len(byIntent))
	for name := range byIntent {
		intentNames = append(intentNames, name)
	}
	sort.Strings(intentNames)

	for _, name := range intentNames {
		intent, ok := declared[name]
		if !ok {
			return nil, fmt.Errorf("patterns for unknown intent %q", name)
		}
		slots := make(map[string]string, len(intent.Slots))
		for _, s := range intent.Slots {
			slots[s.Name] = s.Entity
		}
		for _, src := range byIntent[name] {
			tpl, err := compileTemplate(norm, name, src, slots)
			if err != nil {
				return nil, err
			}
			m.templates = append(m.templates, tpl)
		}
	}
	return m, nil
}

func compileTemplate(norm *normalizer.Normalizer, intent, src string, slots map[string]string) (template, error) {
	tpl := template{intent: intent, source: src}
	addWords := func(text string) error {
		tokens, err := norm.Tokenize(text)
		if err != nil {
			return err
		}
		for _, tok := range tokens {
			tpl.parts = append(tpl.parts, part{word: tok.Normalized})
		}
		return nil
	}

	cursor := 0
	for _, loc := range placeholder.FindAllStringSubmatchIndex(src, -1) {
		if err := addWords(src[cursor:loc[0]]); err != nil {
			return template{}, err
		}
		slot := src[loc[2]:loc[3]]
		entity, ok := slots[slot]
		if !ok {
			return template{}, fmt.Errorf("pattern %q of intent %s references undeclared slot %q", src, intent, slot)
		}
		if n := len(tpl.parts); n > 0 && tpl.parts[n-1].slot != "" {
			return template{}, fmt.Errorf("pattern %q has adjacent placeholders", src)
		}
		tpl.parts = append(tpl.parts, part{slot: slot, entity: entity})
		cursor = loc[1]
	}
	if err := addWords(src[cursor:]); err != nil {
		return template{}, err
	}
	if len(tpl.parts) == 0 {
		return template{}, fmt.Errorf("empty pattern for intent %s", intent)
	}
	return tpl, nil
}

// Len returns the number of compiled templates.
func (m *Matcher) Len() int {
	return len(m.templates)
}

// Match tries every template of the candidate intents against words, the
// folded content tokens. Builtin placeholders must cover a builtin mention
// exactly; custom placeholders must cover a gazetteer mention unless the
// entity is extensible. A match is returned only when exactly one intent
// matches.
func (m *Matcher) Match(words []string, mentions []resolver.Match, candidates map[string]bool) (Result, bool) {
	covered := make(map[[2]int]map[string]bool)
	for _, mt := range mentions {
		key := [2]int{mt.Start, mt.End}
		if covered[key] == nil {
			covered[key] = make(map[string]bool)
		}
		covered[key][mt.Entity] = true
	}

	var (
		found   Result
		matched bool
	)
	for _, tpl := range m.templates {
		if !candidates[tpl.intent] {
			continue
		}
		if matched && found.Intent == tpl.intent {
			continue
		}
		spans, ok := m.matchFrom(tpl.parts, words, 0, covered)
		if !ok {
			continue
		}
		if matched {
			return Result{}, false
		}
		found = Result{Intent: tpl.intent, Slots: spans}
		matched = true
	}
	return found, matched
}

func (m *Matcher) matchFrom(parts []part, words []string, pos int, covered map[[2]int]map[string]bool) ([]Span, bool) {
	if len(parts) == 0 {
		return nil, pos == len(words)
	}
	p := parts[0]
	if p.slot == "" {
		if pos >= len(words) || words[pos] != p.word {
			return nil, false
		}
		return m.matchFrom(parts[1:], words, pos+1, covered)
	}

	limit := min(len(words), pos+maxSlotTokens)
	for end := limit; end > pos; end-- {
		if !m.accepts(p.entity, pos, end, covered) {
			continue
		}
		rest, ok := m.matchFrom(parts[1:], words, end, covered)
		if !ok {
			continue
		}
		span := Span{SlotName: p.slot, Entity: p.entity, Start: pos, End: end}
		return append([]Span{span}, rest...), true
	}
	return nil, false
}

func (m *Matcher) accepts(entity string, start, end int, covered map[[2]int]map[string]bool) bool {
	if covered[[2]int{start, end}][entity] {
		return true
	}
	return !models.IsBuiltinEntity(entity) && m.extensible[entity]
}
