package modelstore

import (
	"nlu-engine/internal/models"
	"nlu-engine/internal/nlu/classifier"
	"nlu-engine/internal/nlu/patterns"
	"nlu-engine/internal/nlu/slotfiller"
)

// BundleFile is the document name looked up in directories and archives.
const BundleFile = "nlu_engine.json"

// Bundle is the serialized form of a trained model.
type Bundle struct {
	ModelVersion        string                         `json:"model_version"`
	Language            string                         `json:"language"`
	NullIntentThreshold float64                        `json:"null_intent_threshold"`
	StopWords           []string                       `json:"stop_words,omitempty"`
	Intents             []models.Intent                `json:"intents"`
	Entities            map[string]models.CustomEntity `json:"entities,omitempty"`
	IntentClassifier    classifier.Params              `json:"intent_classifier"`
	SlotFillers         map[string]slotfiller.Params   `json:"slot_fillers,omitempty"`
	Patterns            map[string][]string            `json:"patterns,omitempty"`
	Lookup              *patterns.LookupParams         `json:"lookup,omitempty"`

	// Stems maps a stem to its inflected forms; WordClusters maps a word
	// to a binary cluster path of at most 16 bits.
	Stems        map[string][]string `json:"stems,omitempty"`
	WordClusters map[string]string   `json:"word_clusters,omitempty"`
}
