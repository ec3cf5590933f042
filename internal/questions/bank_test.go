package questions

import (
	"os"
	"testing"
	"testing/fstest"

	"github.com/dmv-prep/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const caJSON = `[
  {"id": "ca-1", "category": "signs", "question": "Red octagon?", "options": ["Stop", "Yield", "Merge", "Go"], "correct_answer": "A", "correct_index": 0, "explanation": "Stop sign."},
  {"id": "ca-2", "category": "speed", "question": "School zone limit?", "options": ["15", "25", "35", "45"], "correct_answer": "b", "correct_index": 1, "explanation": "25 mph."}
]`

const allYAML = `
- id: all-1
  category: right-of-way
  question: Who goes first at a four-way stop?
  options: ["First to arrive", "Largest vehicle", "Left vehicle", "Nobody"]
  correct_answer: A
  explanation: First come, first served.
- id: all-2
  category: alcohol
  question: Legal BAC limit for adults?
  options: ["0.10%", "0.05%", "0.08%", "0.01%"]
  correct_index: 2
  explanation: 0.08 percent.
`

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"bank/CA.json":   {Data: []byte(caJSON)},
		"bank/ALL.yaml":  {Data: []byte(allYAML)},
		"bank/README.md": {Data: []byte("ignored")},
	}

	bank, err := Load(fsys, "bank")
	require.NoError(t, err)

	assert.Equal(t, 4, bank.Size())
	assert.Equal(t, []string{"CA"}, bank.States())
	assert.Equal(t, 2, bank.StateSize("ca"))

	pool := bank.Pool("ca")
	require.Len(t, pool, 4)
	assert.Equal(t, "all-1", pool[0].ID)

	q, ok := bank.Question("ca-2")
	require.True(t, ok)
	assert.Equal(t, "B", q.CorrectAnswer)
	assert.Equal(t, models.QuestionState, q.Type)
	assert.Equal(t, "CA", q.State)

	u, ok := bank.Question("all-2")
	require.True(t, ok)
	assert.Equal(t, "C", u.CorrectAnswer)
	assert.Equal(t, models.UniversalState, u.State)
	assert.Equal(t, models.QuestionUniversal, u.Type)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"three options", `[{"id":"x","question":"q","options":["a","b","c"],"correct_answer":"A"}]`},
		{"bad letter", `[{"id":"x","question":"q","options":["a","b","c","d"],"correct_answer":"E"}]`},
		{"letter index mismatch", `[{"id":"x","question":"q","options":["a","b","c","d"],"correct_answer":"A","correct_index":3}]`},
		{"missing id", `[{"question":"q","options":["a","b","c","d"],"correct_answer":"A"}]`},
		{"duplicate id", `[{"id":"x","question":"q","options":["a","b","c","d"],"correct_answer":"A"},{"id":"x","question":"q","options":["a","b","c","d"],"correct_answer":"A"}]`},
		{"not json", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := fstest.MapFS{"bank/TX.json": {Data: []byte(tt.data)}}
			_, err := Load(fsys, "bank")
			assert.Error(t, err)
		})
	}
}

func TestPool_UnknownOrUniversalState(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 3, models.UniversalState: 2})

	assert.Empty(t, bank.Pool("NV"))
	assert.Empty(t, bank.Pool(models.UniversalState))
	assert.False(t, bank.HasState(models.UniversalState))
	assert.True(t, bank.HasState("ca"))
}

func TestLoad_ShippedBank(t *testing.T) {
	bank, err := Load(os.DirFS("../../data/questions"), ".")
	require.NoError(t, err)

	for _, state := range bank.States() {
		assert.NotEmpty(t, bank.Pool(state), state)
	}
	assert.Contains(t, bank.States(), "CA")
}
