package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "Вот ответ:\n```json\n[{\"a\":1}]\n```\nготово", `[{"a":1}]`},
		{"bare fence", "```\n{\"a\":2}\n```", `{"a":2}`},
		{"whole text", `  {"a":3} `, `{"a":3}`},
		{"array span", `Результат: [{"a":4}] конец`, `[{"a":4}]`},
		{"object span", `prefix {"a":{"b":5}} suffix`, `{"a":{"b":5}}`},
		{"broken fence falls through", "```json\n{broken\n```\n{\"a\":6}", `{"a":6}`},
		{"first decodable value", `bad {x} then [1, 2] and {"b":7}`, `[1, 2]`},
		{"trailing text after object", `{"a":8} и ещё {`, `{"a":8}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONNone(t *testing.T) {
	for _, in := range []string{"", "   ", "нет данных", "{oops"} {
		_, err := ExtractJSON(in)
		assert.ErrorIs(t, err, ErrNoJSON, in)
	}
}
