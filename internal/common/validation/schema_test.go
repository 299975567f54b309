package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const photoSchema = `{
	"type": "object",
	"required": ["url", "width"],
	"properties": {
		"url": {"type": "string", "minLength": 1},
		"width": {"type": "integer", "minimum": 1}
	}
}`

func TestSchema_ValidateBytes(t *testing.T) {
	s, err := Compile("photo", photoSchema)
	require.NoError(t, err)
	assert.Equal(t, "photo", s.Name())

	tests := []struct {
		name      string
		doc       string
		wantValid bool
		wantField string
		wantCode  string
	}{
		{name: "valid", doc: `{"url":"https://x/1.jpg","width":1920}`, wantValid: true},
		{name: "missing url", doc: `{"width":1920}`, wantField: "(root)", wantCode: "REQUIRED"},
		{name: "zero width", doc: `{"url":"u","width":0}`, wantField: "width", wantCode: "NUMBER_GTE"},
		{name: "not json", doc: `<html>`, wantField: "(root)", wantCode: "MALFORMED_DOCUMENT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ValidateBytes([]byte(tt.doc))
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.NoError(t, res.Err())
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.Equal(t, tt.wantField, res.Errors[0].Field)
			assert.Equal(t, tt.wantCode, res.Errors[0].Code)
			assert.ErrorContains(t, res.Err(), "schema validation failed")
		})
	}
}

func TestSchema_ValidateValue(t *testing.T) {
	s := MustCompile("photo", photoSchema)
	res := s.ValidateValue(map[string]interface{}{"url": "u", "width": 10})
	assert.True(t, res.Valid)
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("broken", `{"type": "nonsense"}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", `{`) })
}
