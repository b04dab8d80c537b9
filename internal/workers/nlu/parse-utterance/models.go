package parseutterance

import "nlu-engine/internal/models"

// Input is read from the job variables. Other process variables are ignored.
type Input struct {
	Text      string   `json:"text"`
	Whitelist []string `json:"intentsWhitelist,omitempty"`
	Blacklist []string `json:"intentsBlacklist,omitempty"`
	// ReferenceTime anchors relative dates, RFC 3339. Defaults to now.
	ReferenceTime string `json:"referenceTime,omitempty"`
	// Alternatives asks for that many lower-ranked intent parses.
	Alternatives int `json:"alternatives,omitempty"`
}

type Output struct {
	Result       models.ParseResult
	Alternatives []models.ParseResult
	HistoryID    string
}

// Variables is what the job completes with.
func (o *Output) Variables() map[string]interface{} {
	vars := map[string]interface{}{
		"nluResult":     o.Result,
		"nluIntent":     o.Result.Intent.Name(),
		"nluConfidence": o.Result.Intent.ConfidenceScore,
		"nluSlotValues": slotValues(o.Result.Slots),
	}
	if o.Alternatives != nil {
		vars["nluAlternatives"] = o.Alternatives
	}
	if o.HistoryID != "" {
		vars["nluHistoryId"] = o.HistoryID
	}
	return vars
}

// slotValues flattens slots to name -> raw value for gateway conditions.
// The first slot wins when a name repeats.
func slotValues(slots []models.Slot) map[string]string {
	values := make(map[string]string, len(slots))
	for _, s := range slots {
		if _, ok := values[s.SlotName]; !ok {
			values[s.SlotName] = s.RawValue
		}
	}
	return values
}
