package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minLen(n int) *int { return &n }

var testSchema = JSONSchema{
	Type:     "object",
	Required: []string{"project", "rankedSellers"},
	Properties: map[string]Property{
		"project": {
			Type:     "object",
			Required: []string{"id"},
			Properties: map[string]Property{
				"id": {Type: "string", MinLength: minLen(1)},
			},
		},
		"rankedSellers": {Type: "array", Items: &Property{Type: "object"}},
		"price":         {AnyOf: []Property{{Type: "number"}, {Type: "string"}}},
	},
}

func TestSchema_ValidateJSON(t *testing.T) {
	s, err := Compile(testSchema)
	require.NoError(t, err)

	tests := []struct {
		name      string
		doc       string
		valid     bool
		errField  string
		errSubstr string
	}{
		{"valid", `{"project":{"id":"p1"},"rankedSellers":[]}`, true, "", ""},
		{"extra fields allowed", `{"project":{"id":"p1","title":"x"},"rankedSellers":[{}],"draft":true}`, true, "", ""},
		{"missing sellers", `{"project":{"id":"p1"}}`, false, "(root)", "rankedSellers is required"},
		{"sellers not array", `{"project":{"id":"p1"},"rankedSellers":{}}`, false, "rankedSellers", ""},
		{"empty project id", `{"project":{"id":""},"rankedSellers":[]}`, false, "project.id", ""},
		{"numeric price", `{"project":{"id":"p"},"rankedSellers":[],"price":100}`, true, "", ""},
		{"bool price", `{"project":{"id":"p"},"rankedSellers":[],"price":true}`, false, "price", ""},
		{"malformed", `{"project":`, false, "(root)", "not valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.ValidateJSON([]byte(tt.doc))
			assert.Equal(t, tt.valid, res.Valid, res.Error())
			if tt.valid {
				return
			}
			require.NotEmpty(t, res.Errors)
			assert.True(t, res.HasErrors(tt.errField), res.Error())
			if tt.errSubstr != "" {
				assert.Contains(t, res.Error(), tt.errSubstr)
			}
		})
	}
}

func TestMustCompilePanicsOnBadSchema(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile(JSONSchema{Type: "object", Properties: map[string]Property{"x": {Type: "no-such-type"}}})
	})
}
