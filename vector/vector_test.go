package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopK_DegenerateVectors(t *testing.T) {
	docs := []Document{
		{ID: "zero", Embedding: []float32{0, 0}},
		{ID: "short", Embedding: []float32{1}},
		{ID: "good", Embedding: []float32{1, 0}},
	}

	results := TopK([]float32{1, 0}, docs, 3)
	require.Len(t, results, 3)

	assert.Equal(t, "good", results[0].Document.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	// Zero-norm and length-mismatched embeddings score 0 instead of erroring.
	assert.Zero(t, results[1].Score)
	assert.Zero(t, results[2].Score)
}

func TestTopK_EmptyInput(t *testing.T) {
	assert.Empty(t, TopK([]float32{1, 0}, nil, 5))
}

func TestMatchesFilter(t *testing.T) {
	doc := Document{Metadata: map[string]any{
		"course_title":  "Go Basics",
		"lesson_number": float64(3),
		"chunk_index":   7,
	}}

	tests := []struct {
		name   string
		filter map[string]any
		want   bool
	}{
		{"empty filter matches", map[string]any{}, true},
		{"string equality", map[string]any{"course_title": "Go Basics"}, true},
		{"string mismatch", map[string]any{"course_title": "Other"}, false},
		{"int vs float64", map[string]any{"lesson_number": 3}, true},
		{"float64 vs int", map[string]any{"chunk_index": float64(7)}, true},
		{"numeric mismatch", map[string]any{"lesson_number": 4}, false},
		{"missing key", map[string]any{"instructor": "anyone"}, false},
		{"number vs string never equal", map[string]any{"lesson_number": "3"}, false},
		{
			"all keys must match",
			map[string]any{"course_title": "Go Basics", "lesson_number": 99},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesFilter(doc, tt.filter))
		})
	}
}

func TestVectorCodec(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e7}

	out, err := DecodeVector(EncodeVector(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = DecodeVector([]byte{1, 2, 3})
	assert.ErrorContains(t, err, "not a multiple of 4")
}
