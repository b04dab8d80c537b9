package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": {"type": "string", "minLength": 1},
    "whitelist": {"type": "array", "items": {"type": "string"}},
    "options": {
      "type": "object",
      "properties": {"alternatives": {"type": "integer", "minimum": 0}}
    }
  }
}`

func TestSchema_ValidateValue(t *testing.T) {
	s := MustCompileSchema([]byte(testSchema))

	tests := []struct {
		name        string
		input       map[string]interface{}
		valid       bool
		errorFields []string
	}{
		{"valid", map[string]interface{}{"text": "hi", "whitelist": []interface{}{"Greet"}}, true, nil},
		{"missing text", map[string]interface{}{}, false, nil},
		{"empty text", map[string]interface{}{"text": ""}, false, []string{"text"}},
		{"bad whitelist item", map[string]interface{}{"text": "hi", "whitelist": []interface{}{1}}, false, []string{"whitelist.0"}},
		{"nested minimum", map[string]interface{}{"text": "hi", "options": map[string]interface{}{"alternatives": -1}}, false, []string{"options.alternatives"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := s.ValidateValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, result.Valid)
			for _, field := range tt.errorFields {
				assert.True(t, result.HasErrors(field), "expected error on %s, got %v", field, result.GetErrorMessages())
			}
		})
	}
}

func TestSchema_ValidateBytes(t *testing.T) {
	s := MustCompileSchema([]byte(testSchema))

	result, err := s.ValidateBytes([]byte(`{"text": "hello"}`))
	require.NoError(t, err)
	assert.True(t, result.Valid)

	result, err = s.ValidateBytes([]byte(`{"text": 3, "options": {"alternatives": "x"}}`))
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Len(t, result.GetErrorsForField("options"), 1)
	assert.Contains(t, result.Error(), "text")

	_, err = s.ValidateBytes([]byte(`{not json`))
	assert.Error(t, err)
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema([]byte(`{"type": 12}`))
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompileSchema([]byte(`nope`)) })
}
