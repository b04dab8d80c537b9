package extractslots

import "nlu-engine/internal/models"

// Input names the intent whose slots are wanted. With Slot set, the whole
// text is read as that one slot, which is how a re-prompt answer is handled.
type Input struct {
	Text          string `json:"text"`
	Intent        string `json:"intent"`
	Slot          string `json:"slot,omitempty"`
	ReferenceTime string `json:"referenceTime,omitempty"`
}

type Output struct {
	Slots []models.Slot
	// Single is set only for single-slot requests.
	Single    *models.Slot
	singleRun bool
}

func (o *Output) Variables() map[string]interface{} {
	if o.singleRun {
		return map[string]interface{}{
			"nluSlot":      o.Single,
			"nluSlotFound": o.Single != nil,
		}
	}
	return map[string]interface{}{
		"nluSlots": o.Slots,
	}
}
