package questions

import (
	"errors"
	"testing"

	"github.com/dmv-prep/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainingSets(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 40, models.UniversalState: 12})
	sel := NewTrainingSelector(bank, 25)

	sets := sel.Sets("ca")
	require.Len(t, sets, 3)
	assert.Equal(t, "CA-1", sets[0].ID)
	assert.Len(t, sets[0].QuestionIDs, 25)
	assert.Len(t, sets[2].QuestionIDs, 2)

	set, err := sel.Set("CA-3")
	require.NoError(t, err)
	assert.Equal(t, sets[2].QuestionIDs, set.QuestionIDs)

	for _, bad := range []string{"CA-4", "CA-0", "CA", "-1", "CA-x"} {
		_, err := sel.Set(bad)
		assert.Truef(t, errors.Is(err, ErrUnknownSet), "set %q: got %v", bad, err)
	}
}

func TestParseSetID(t *testing.T) {
	state, idx, err := ParseSetID("tx-12")
	require.NoError(t, err)
	assert.Equal(t, "TX", state)
	assert.Equal(t, 12, idx)
	assert.Equal(t, "TX-12", SetID("tx", 12))
}

func TestTrainingNext_WrongAnswersComeBackFirst(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 5})
	sel := NewTrainingSelector(bank, 25)
	set, err := sel.Set("CA-1")
	require.NoError(t, err)

	p := &models.TrainingSetProgress{}

	q, ok := sel.Next(set, p, "")
	require.True(t, ok)
	assert.Equal(t, "CA-001", q.ID)

	_, correct, err := sel.Record(set, p, "CA-001", "A")
	require.NoError(t, err)
	assert.False(t, correct)
	assert.Equal(t, []string{"CA-001"}, p.WrongQueue)

	// The missed question was just shown, so a fresh one comes first.
	q, ok = sel.Next(set, p, "CA-001")
	require.True(t, ok)
	assert.Equal(t, "CA-002", q.ID)

	_, correct, err = sel.Record(set, p, "CA-002", "B")
	require.NoError(t, err)
	assert.True(t, correct)

	q, ok = sel.Next(set, p, "CA-002")
	require.True(t, ok)
	assert.Equal(t, "CA-001", q.ID)
}

func TestTrainingNext_HeldBackOnlyWhenAlternativesExist(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 2})
	sel := NewTrainingSelector(bank, 25)
	set, _ := sel.Set("CA-1")

	p := &models.TrainingSetProgress{}
	p.MarkCorrect("CA-002")
	p.MarkWrong("CA-001")

	q, ok := sel.Next(set, p, "CA-001")
	require.True(t, ok)
	assert.Equal(t, "CA-001", q.ID)
}

func TestTrainingRecord_MasteryIsPermanent(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 3})
	sel := NewTrainingSelector(bank, 25)
	set, _ := sel.Set("CA-1")
	p := &models.TrainingSetProgress{}

	for _, id := range set.QuestionIDs {
		_, correct, err := sel.Record(set, p, id, "B")
		require.NoError(t, err)
		require.True(t, correct)
	}
	assert.True(t, set.IsComplete(p))
	assert.Equal(t, 3, p.CorrectCount)
	assert.Equal(t, 3, set.MasteredCount(p))

	// A later wrong answer does not un-master a question.
	_, correct, err := sel.Record(set, p, "CA-002", "D")
	require.NoError(t, err)
	assert.False(t, correct)
	assert.Empty(t, p.WrongQueue)
	assert.Equal(t, 3, p.CorrectCount)

	_, ok := sel.Next(set, p, "")
	assert.False(t, ok)
}

func TestTrainingRecord_QuestionOutsideSet(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 30})
	sel := NewTrainingSelector(bank, 25)
	set, _ := sel.Set("CA-1")

	_, _, err := sel.Record(set, &models.TrainingSetProgress{}, "CA-030", "B")
	assert.True(t, errors.Is(err, ErrNotInSet))
}

func TestTrainingNext_NeverRepeatsBackToBack(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 6})
	sel := NewTrainingSelector(bank, 25)
	set, _ := sel.Set("CA-1")
	p := &models.TrainingSetProgress{}

	last := ""
	for i := 0; i < 40; i++ {
		q, ok := sel.Next(set, p, last)
		if !ok {
			break
		}
		remaining := len(set.QuestionIDs) - set.MasteredCount(p)
		if remaining > 1 {
			require.NotEqual(t, last, q.ID, "step %d", i)
		}
		// Miss every question once, then get it right.
		letter := "B"
		if !p.InWrongQueue(q.ID) {
			letter = "C"
		}
		_, _, err := sel.Record(set, p, q.ID, letter)
		require.NoError(t, err)
		last = q.ID
	}
	assert.True(t, set.IsComplete(p))
}
