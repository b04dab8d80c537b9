package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/normalizer"
	"nlu-engine/internal/nlu/resolver"
)

// ==========================
// Test Helper Functions
// ==========================

var testIntents = []models.Intent{
	{Name: "BookRestaurant", Slots: []models.SlotSchema{{Name: "party_size", Entity: models.EntityNumber}}},
	{Name: "TurnLightOn", Slots: []models.SlotSchema{{Name: "room", Entity: "room"}}},
	{Name: "Greet"},
	{Name: "SayHello"},
}

func newNormalizer(t *testing.T) *normalizer.Normalizer {
	t.Helper()
	n, err := normalizer.New("en")
	require.NoError(t, err)
	return n
}

func words(t *testing.T, n *normalizer.Normalizer, text string) []string {
	t.Helper()
	tokens, err := n.Tokenize(text)
	require.NoError(t, err)
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.Normalized
	}
	return out
}

func all() map[string]bool {
	return map[string]bool{"BookRestaurant": true, "TurnLightOn": true, "Greet": true, "SayHello": true}
}

func compile(t *testing.T, extensible bool, byIntent map[string][]string) (*Matcher, *normalizer.Normalizer) {
	t.Helper()
	n := newNormalizer(t)
	entities := map[string]models.CustomEntity{"room": {Name: "room", AutomaticallyExtensible: extensible}}
	m, err := Compile(n, testIntents, entities, byIntent)
	require.NoError(t, err)
	return m, n
}

// ==========================
// Match Tests
// ==========================

func TestMatch_BuiltinPlaceholder(t *testing.T) {
	m, n := compile(t, false, map[string][]string{
		"BookRestaurant": {"reserve a table for {party_size} people"},
	})
	require.Equal(t, 1, m.Len())

	mentions := []resolver.Match{{Entity: models.EntityNumber, Start: 4, End: 5}}
	got, ok := m.Match(words(t, n, "Reserve a table for four people!"), mentions, all())
	require.True(t, ok)
	assert.Equal(t, "BookRestaurant", got.Intent)
	assert.Equal(t, []Span{{SlotName: "party_size", Entity: models.EntityNumber, Start: 4, End: 5}}, got.Slots)

	_, ok = m.Match(words(t, n, "reserve a table for many people"), nil, all())
	assert.False(t, ok, "builtin placeholder needs a detected mention")
}

func TestMatch_CustomPlaceholder(t *testing.T) {
	byIntent := map[string][]string{"TurnLightOn": {"turn on the {room} lights"}}

	strict, n := compile(t, false, byIntent)
	in := words(t, n, "turn on the garage lights")
	_, ok := strict.Match(in, nil, all())
	assert.False(t, ok)

	got, ok := strict.Match(words(t, n, "turn on the living room lights"),
		[]resolver.Match{{Entity: "room", Start: 3, End: 5}}, all())
	require.True(t, ok)
	assert.Equal(t, 3, got.Slots[0].Start)
	assert.Equal(t, 5, got.Slots[0].End)

	extensible, _ := compile(t, true, byIntent)
	got, ok = extensible.Match(in, nil, all())
	require.True(t, ok)
	assert.Equal(t, "room", got.Slots[0].SlotName)
}

func TestMatch_AmbiguousFallsThrough(t *testing.T) {
	m, n := compile(t, false, map[string][]string{
		"Greet":    {"hello"},
		"SayHello": {"hello", "hello there"},
	})
	_, ok := m.Match(words(t, n, "hello"), nil, all())
	assert.False(t, ok)

	got, ok := m.Match(words(t, n, "hello there"), nil, all())
	require.True(t, ok)
	assert.Equal(t, "SayHello", got.Intent)

	got, ok = m.Match(words(t, n, "hello"), nil, map[string]bool{"Greet": true})
	require.True(t, ok, "filtering out one intent removes the ambiguity")
	assert.Equal(t, "Greet", got.Intent)
}

func TestMatch_RequiresWholeUtterance(t *testing.T) {
	m, n := compile(t, false, map[string][]string{"Greet": {"hello"}})
	_, ok := m.Match(words(t, n, "hello world"), nil, all())
	assert.False(t, ok)
	_, ok = m.Match(nil, nil, all())
	assert.False(t, ok)
}

// ==========================
// Compile Tests
// ==========================

func TestCompile_Errors(t *testing.T) {
	n := newNormalizer(t)
	tests := []struct {
		name     string
		byIntent map[string][]string
	}{
		{"unknown intent", map[string][]string{"GetWeather": {"weather"}}},
		{"undeclared slot", map[string][]string{"BookRestaurant": {"table for {guests}"}}},
		{"adjacent placeholders", map[string][]string{"BookRestaurant": {"{party_size}{party_size}"}}},
		{"empty pattern", map[string][]string{"Greet": {"  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(n, testIntents, nil, tt.byIntent)
			assert.Error(t, err)
		})
	}
}
