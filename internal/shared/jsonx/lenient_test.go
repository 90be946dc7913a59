package jsonx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type payload struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

func TestDecodeLenientStrictJSON(t *testing.T) {
	var p payload
	require.NoError(t, DecodeLenient(`{"score": 7, "comment": "fine"}`, &p))
	require.Equal(t, 7, p.Score)
}

func TestDecodeLenientFencedJSON(t *testing.T) {
	text := "```json\n{\"score\": 8, \"comment\": \"fenced\"}\n```"
	var p payload
	require.NoError(t, DecodeLenient(text, &p))
	require.Equal(t, "fenced", p.Comment)
}

func TestDecodeLenientJSONEmbeddedInProse(t *testing.T) {
	text := "Here is my evaluation:\n{\"score\": 6, \"comment\": \"embedded\"}\nHope that helps!"
	var p payload
	require.NoError(t, DecodeLenient(text, &p))
	require.Equal(t, 6, p.Score)
}

func TestDecodeLenientRepairsTrailingComma(t *testing.T) {
	var p payload
	require.NoError(t, DecodeLenient(`{"score": 5, "comment": "trailing",}`, &p))
	require.Equal(t, 5, p.Score)
}

func TestDecodeLenientFailsOnProse(t *testing.T) {
	var p payload
	require.Error(t, DecodeLenient("I cannot rate this response.", &p))
}

func TestDecodeLenientFailsOnEmpty(t *testing.T) {
	var p payload
	require.Error(t, DecodeLenient("   ", &p))
}

func TestStripFencesWithoutFence(t *testing.T) {
	require.Equal(t, `{"a":1}`, StripFences(`  {"a":1}  `))
}
