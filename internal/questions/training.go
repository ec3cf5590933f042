package questions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmv-prep/backend/internal/models"
)

var (
	ErrUnknownSet = errors.New("unknown training set")
	ErrNotInSet   = errors.New("question is not part of training set")
)

const DefaultTrainingSetSize = 25

// TrainingSet is a fixed slice of a state's pool. Sets are numbered from 1.
type TrainingSet struct {
	ID          string
	State       string
	Index       int
	QuestionIDs []string
}

func (s TrainingSet) Contains(id string) bool {
	for _, q := range s.QuestionIDs {
		if q == id {
			return true
		}
	}
	return false
}

// IsComplete reports whether every question of the set is mastered.
func (s TrainingSet) IsComplete(p *models.TrainingSetProgress) bool {
	if p == nil {
		return len(s.QuestionIDs) == 0
	}
	for _, id := range s.QuestionIDs {
		if !p.IsMastered(id) {
			return false
		}
	}
	return true
}

// MasteredCount counts mastered questions that belong to the set.
func (s TrainingSet) MasteredCount(p *models.TrainingSetProgress) int {
	if p == nil {
		return 0
	}
	n := 0
	for _, id := range s.QuestionIDs {
		if p.IsMastered(id) {
			n++
		}
	}
	return n
}

func SetID(state string, index int) string {
	return fmt.Sprintf("%s-%d", strings.ToUpper(state), index)
}

// ParseSetID splits "CA-3" into its state and 1-based index.
func ParseSetID(setID string) (string, int, error) {
	i := strings.LastIndex(setID, "-")
	if i <= 0 || i == len(setID)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownSet, setID)
	}
	n, err := strconv.Atoi(setID[i+1:])
	if err != nil || n < 1 {
		return "", 0, fmt.Errorf("%w: %q", ErrUnknownSet, setID)
	}
	return strings.ToUpper(setID[:i]), n, nil
}

// TrainingSelector schedules training questions. Wrong answers come back
// oldest first, mastered questions are retired for good, and the question
// just shown is not repeated back to back.
type TrainingSelector struct {
	bank    *Bank
	setSize int
}

func NewTrainingSelector(bank *Bank, setSize int) *TrainingSelector {
	if setSize <= 0 {
		setSize = DefaultTrainingSetSize
	}
	return &TrainingSelector{bank: bank, setSize: setSize}
}

// Sets chunks the state's pool, sorted by id, into training sets.
func (t *TrainingSelector) Sets(state string) []TrainingSet {
	state = strings.ToUpper(state)
	pool := t.bank.Pool(state)
	var sets []TrainingSet
	for start := 0; start < len(pool); start += t.setSize {
		end := min(start+t.setSize, len(pool))
		set := TrainingSet{
			ID:    SetID(state, len(sets)+1),
			State: state,
			Index: len(sets) + 1,
		}
		for _, q := range pool[start:end] {
			set.QuestionIDs = append(set.QuestionIDs, q.ID)
		}
		sets = append(sets, set)
	}
	return sets
}

func (t *TrainingSelector) Set(setID string) (TrainingSet, error) {
	state, index, err := ParseSetID(setID)
	if err != nil {
		return TrainingSet{}, err
	}
	sets := t.Sets(state)
	if index > len(sets) {
		return TrainingSet{}, fmt.Errorf("%w: %q", ErrUnknownSet, setID)
	}
	return sets[index-1], nil
}

// Next picks the question to present, or false once the set is mastered.
func (t *TrainingSelector) Next(set TrainingSet, p *models.TrainingSetProgress, lastShown string) (models.Question, bool) {
	if p == nil {
		p = &models.TrainingSetProgress{}
	}

	// lastShown is held back unless nothing else is left.
	var held string
	for _, id := range p.WrongQueue {
		if p.IsMastered(id) || !set.Contains(id) {
			continue
		}
		if id == lastShown {
			held = id
			continue
		}
		if q, ok := t.bank.Question(id); ok {
			return q, true
		}
	}

	for _, id := range set.QuestionIDs {
		if p.IsMastered(id) || p.InWrongQueue(id) {
			continue
		}
		if id == lastShown {
			if held == "" {
				held = id
			}
			continue
		}
		if q, ok := t.bank.Question(id); ok {
			return q, true
		}
	}

	if held != "" {
		if q, ok := t.bank.Question(held); ok {
			return q, true
		}
	}
	return models.Question{}, false
}

// Record applies an answer to the set's progress and reports whether it was correct.
func (t *TrainingSelector) Record(set TrainingSet, p *models.TrainingSetProgress, questionID, letter string) (models.Question, bool, error) {
	if !set.Contains(questionID) {
		return models.Question{}, false, fmt.Errorf("%w: %s not in %s", ErrNotInSet, questionID, set.ID)
	}
	q, ok := t.bank.Question(questionID)
	if !ok {
		return models.Question{}, false, fmt.Errorf("%w: %s", ErrNotInSet, questionID)
	}
	correct := q.IsCorrect(letter)
	if correct {
		p.MarkCorrect(questionID)
	} else {
		p.MarkWrong(questionID)
	}
	return q, correct, nil
}
