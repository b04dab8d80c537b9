package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/normalizer"
	"nlu-engine/internal/nlu/resolver"
)

// LookupParams is an exact-match table from a normalized utterance, with
// entity values replaced by placeholders such as %SNIPSNUMBER%, to its
// intent and the slot names of the placeholders in order.
type LookupParams struct {
	IgnoreStopWords bool                   `json:"ignore_stop_words,omitempty"`
	Entries         map[string]LookupEntry `json:"entries"`
}

type LookupEntry struct {
	Intent string   `json:"intent"`
	Slots  []string `json:"slots,omitempty"`
}

var placeholderToken = regexp.MustCompile(`^%[^%\s]+%$`)

// EntityPlaceholder returns the token standing for entity in a lookup key:
// its letters and digits uppercased between percent signs.
func EntityPlaceholder(entity string) string {
	var b strings.Builder
	b.WriteByte('%')
	for _, r := range entity {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	b.WriteByte('%')
	return b.String()
}

type lookupSlot struct {
	name   string
	entity string
}

type lookupEntry struct {
	intent string
	slots  []lookupSlot
}

// Lookup is a compiled LookupParams. It is immutable; a nil *Lookup never
// matches.
type Lookup struct {
	entries     map[string]lookupEntry
	stopWords   map[string]bool
	ignoreStops bool
}

// CompileLookup normalizes every key with norm and checks each entry
// against the declared intents and slots.
func CompileLookup(norm *normalizer.Normalizer, intents []models.Intent, stopWords []string, p *LookupParams) (*Lookup, error) {
	if p == nil {
		return nil, nil
	}
	l := &Lookup{
		entries:     make(map[string]lookupEntry, len(p.Entries)),
		stopWords:   make(map[string]bool, len(stopWords)),
		ignoreStops: p.IgnoreStopWords,
	}
	for _, w := range stopWords {
		l.stopWords[w] = true
	}

	owners := make(map[string]string)
	declared := make(map[string]map[string]string, len(intents))
	for _, in := range intents {
		slots := make(map[string]string, len(in.Slots))
		for _, s := range in.Slots {
			slots[s.Name] = s.Entity
			ph := EntityPlaceholder(s.Entity)
			if other, ok := owners[ph]; ok && other != s.Entity {
				return nil, fmt.Errorf("entities %q and %q share the lookup placeholder %s", other, s.Entity, ph)
			}
			owners[ph] = s.Entity
		}
		declared[in.Name] = slots
	}

	keys := make([]string, 0, len(p.Entries))
	for k := range p.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, src := range keys {
		raw := p.Entries[src]
		slots, ok := declared[raw.Intent]
		if !ok {
			return nil, fmt.Errorf("lookup entry %q has unknown intent %q", src, raw.Intent)
		}
		key, placeholders, err := l.normalizeKey(norm, src)
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, fmt.Errorf("lookup entry %q is empty once normalized", src)
		}
		if len(placeholders) != len(raw.Slots) {
			return nil, fmt.Errorf("lookup entry %q has %d placeholders for %d slots", src, len(placeholders), len(raw.Slots))
		}

		entry := lookupEntry{intent: raw.Intent, slots: make([]lookupSlot, len(raw.Slots))}
		for i, name := range raw.Slots {
			entity, ok := slots[name]
			if !ok {
				return nil, fmt.Errorf("lookup entry %q references undeclared slot %q of intent %s", src, name, raw.Intent)
			}
			if EntityPlaceholder(entity) != placeholders[i] {
				return nil, fmt.Errorf("lookup entry %q binds slot %q to %s, want %s", src, name, placeholders[i], EntityPlaceholder(entity))
			}
			entry.slots[i] = lookupSlot{name: name, entity: entity}
		}

		if prev, ok := l.entries[key]; ok && !sameEntry(prev, entry) {
			return nil, fmt.Errorf("lookup entries normalize to the same key %q with different outcomes", key)
		}
		l.entries[key] = entry
	}
	return l, nil
}

func sameEntry(a, b lookupEntry) bool {
	if a.intent != b.intent || len(a.slots) != len(b.slots) {
		return false
	}
	for i := range a.slots {
		if a.slots[i] != b.slots[i] {
			return false
		}
	}
	return true
}

func (l *Lookup) normalizeKey(norm *normalizer.Normalizer, src string) (string, []string, error) {
	var (
		out          []string
		placeholders []string
	)
	for _, field := range strings.Fields(src) {
		if placeholderToken.MatchString(field) {
			out = append(out, field)
			placeholders = append(placeholders, field)
			continue
		}
		tokens, err := norm.Tokenize(field)
		if err != nil {
			return "", nil, err
		}
		for _, tok := range tokens {
			if !l.dropped(tok.Normalized) {
				out = append(out, tok.Normalized)
			}
		}
	}
	return strings.Join(out, " "), placeholders, nil
}

func (l *Lookup) dropped(word string) bool {
	return l.ignoreStops && l.stopWords[word]
}

// Len returns the number of distinct keys.
func (l *Lookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// Match replaces the leftmost longest mentions in words with their
// placeholders and looks the result up; failing that it looks up the plain
// words, which only matches entries without slots. The intent must be a
// candidate.
func (l *Lookup) Match(words []string, mentions []resolver.Match, candidates map[string]bool) (Result, bool) {
	if l == nil || len(words) == 0 {
		return Result{}, false
	}

	picked := pickMentions(mentions, len(words))
	var (
		keyed []string
		used  []resolver.Match
		next  int
	)
	for i := 0; i < len(words); i++ {
		if next < len(picked) && picked[next].Start == i {
			m := picked[next]
			keyed = append(keyed, EntityPlaceholder(m.Entity))
			used = append(used, m)
			i = m.End - 1
			next++
			continue
		}
		if !l.dropped(words[i]) {
			keyed = append(keyed, words[i])
		}
	}
	if entry, ok := l.entries[strings.Join(keyed, " ")]; ok && candidates[entry.intent] {
		if res, ok := bind(entry, used); ok {
			return res, true
		}
	}

	plain := make([]string, 0, len(words))
	for _, w := range words {
		if !l.dropped(w) {
			plain = append(plain, w)
		}
	}
	if entry, ok := l.entries[strings.Join(plain, " ")]; ok && candidates[entry.intent] && len(entry.slots) == 0 {
		return Result{Intent: entry.intent}, true
	}
	return Result{}, false
}

// pickMentions keeps non-overlapping mentions, earliest start first and
// longest first among equal starts.
func pickMentions(mentions []resolver.Match, n int) []resolver.Match {
	sorted := make([]resolver.Match, 0, len(mentions))
	for _, m := range mentions {
		if m.Start >= 0 && m.End <= n && m.Start < m.End {
			sorted = append(sorted, m)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	var out []resolver.Match
	end := 0
	for _, m := range sorted {
		if m.Start >= end {
			out = append(out, m)
			end = m.End
		}
	}
	return out
}

func bind(entry lookupEntry, used []resolver.Match) (Result, bool) {
	if len(entry.slots) != len(used) {
		return Result{}, false
	}
	res := Result{Intent: entry.intent}
	for i, s := range entry.slots {
		if used[i].Entity != s.entity {
			return Result{}, false
		}
		res.Slots = append(res.Slots, Span{SlotName: s.name, Entity: s.entity, Start: used[i].Start, End: used[i].End})
	}
	return res, true
}
