package parseutterance

import "nlu-engine/internal/common/validation"

var inputSchema = validation.MustCompileSchema([]byte(`{
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": {"type": "string", "minLength": 1},
    "intentsWhitelist": {"type": ["array", "null"], "items": {"type": "string"}},
    "intentsBlacklist": {"type": ["array", "null"], "items": {"type": "string"}},
    "referenceTime": {"type": "string", "format": "date-time"},
    "alternatives": {"type": "integer", "minimum": 0}
  }
}`))
