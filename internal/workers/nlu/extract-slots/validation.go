package extractslots

import "nlu-engine/internal/common/validation"

var inputSchema = validation.MustCompileSchema([]byte(`{
  "type": "object",
  "required": ["text", "intent"],
  "properties": {
    "text": {"type": "string", "minLength": 1},
    "intent": {"type": "string", "minLength": 1},
    "slot": {"type": "string"},
    "referenceTime": {"type": "string", "format": "date-time"}
  }
}`))
