// Package nlutest builds a small trained bundle for tests: a restaurant
// booking intent, a light switching intent and a null class.
package nlutest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/classifier"
	"nlu-engine/internal/nlu/modelstore"
	"nlu-engine/internal/nlu/slotfiller"
)

const (
	BookRestaurant = "BookRestaurant"
	TurnLightOn    = "TurnLightOn"
)

// Reference is a Monday afternoon used as the anchor for relative dates.
var Reference = time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)

func intent(name string) *string {
	return &name
}

// Bundle returns a fresh copy of the reference bundle.
func Bundle() modelstore.Bundle {
	vocabulary := []string{
		"book", "table", "reserve", "restaurant",
		"turn", "lights", "light", "switch", "on",
		"entity:room",
	}
	vocab := make(map[string]int, len(vocabulary))
	idf := make([]float64, len(vocabulary))
	book := make([]float64, len(vocabulary))
	lights := make([]float64, len(vocabulary))
	null := make([]float64, len(vocabulary))
	for i, term := range vocabulary {
		vocab[term] = i
		idf[i] = 1
		null[i] = -3
		switch {
		case i < 4:
			book[i] = 6
		case term == "entity:room":
			lights[i] = 3
		default:
			lights[i] = 6
		}
	}

	return modelstore.Bundle{
		ModelVersion:        modelstore.EngineVersion,
		Language:            "en",
		NullIntentThreshold: 0.3,
		StopWords:           []string{"a", "the", "for", "at", "in"},
		Intents: []models.Intent{
			{Name: BookRestaurant, Slots: []models.SlotSchema{
				{Name: "party_size", Entity: models.EntityNumber},
				{Name: "time", Entity: models.EntityDatetime},
			}},
			{Name: TurnLightOn, Slots: []models.SlotSchema{
				{Name: "room", Entity: "room"},
			}},
		},
		Entities: map[string]models.CustomEntity{
			"room": {
				AutomaticallyExtensible: false,
				Values: []models.EntityValue{
					{Value: "kitchen"},
					{Value: "living room", Synonyms: []string{"lounge"}},
					{Value: "bedroom"},
				},
			},
		},
		IntentClassifier: classifier.Params{
			Vocabulary:   vocab,
			IDF:          idf,
			Classes:      []*string{intent(BookRestaurant), intent(TurnLightOn), nil},
			Intercepts:   []float64{-2, -2, 1},
			Coefficients: [][]float64{book, lights, null},
		},
		SlotFillers: map[string]slotfiller.Params{
			BookRestaurant: {
				TaggingScheme: "bio",
				FeatureWeights: map[string]map[string]float64{
					"bias":                     {"O": 1},
					"builtin:B:snips/datetime": {"B-time": 6},
					"builtin:I:snips/datetime": {"I-time": 6},
					"builtin:B:snips/number":   {"B-party_size": 5},
					"builtin:I:snips/number":   {"I-party_size": 5},
				},
			},
			TurnLightOn: {
				TaggingScheme: "bio",
				FeatureWeights: map[string]map[string]float64{
					"bias":          {"O": 1},
					"entity:B:room": {"B-room": 5},
					"entity:I:room": {"I-room": 5},
				},
			},
		},
		Patterns: map[string][]string{
			BookRestaurant: {"reserve a table for {party_size} people"},
		},
	}
}

// JSON encodes b.
func JSON(t testing.TB, b modelstore.Bundle) []byte {
	t.Helper()
	data, err := json.Marshal(b)
	require.NoError(t, err)
	return data
}

// WriteDir writes b as a bundle directory and returns its path.
func WriteDir(t testing.TB, b modelstore.Bundle) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, modelstore.BundleFile), JSON(t, b), 0o600))
	return dir
}

// WriteFile writes b as a standalone bundle file and returns its path.
func WriteFile(t testing.TB, b modelstore.Bundle) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, JSON(t, b), 0o600))
	return path
}

// Archive zips b under prefix, which may be empty or a directory name.
func Archive(t testing.TB, b modelstore.Bundle, prefix string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	name := modelstore.BundleFile
	if prefix != "" {
		name = prefix + "/" + name
	}
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write(JSON(t, b))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// Model compiles the reference bundle.
func Model(t testing.TB) *modelstore.Model {
	t.Helper()
	m, err := modelstore.Load(JSON(t, Bundle()))
	require.NoError(t, err)
	return m
}
