package questions

import (
	"fmt"
	"testing"

	"github.com/dmv-prep/backend/internal/models"
)

// makeQuestions builds n questions for state whose correct answer is "B".
func makeQuestions(state string, n int) []models.Question {
	out := make([]models.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Question{
			ID:            fmt.Sprintf("%s-%03d", state, i+1),
			State:         state,
			Category:      "signs",
			Text:          fmt.Sprintf("%s question %d", state, i+1),
			Options:       []string{"one", "two", "three", "four"},
			CorrectAnswer: "B",
			CorrectIndex:  1,
			Explanation:   "because",
		})
	}
	return out
}

func makeBank(t *testing.T, parts map[string]int) *Bank {
	t.Helper()
	var all []models.Question
	for state, n := range parts {
		qs := makeQuestions(state, n)
		if state == models.UniversalState {
			for i := range qs {
				qs[i].Type = models.QuestionUniversal
			}
		}
		all = append(all, qs...)
	}
	bank, err := NewBank(all)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	return bank
}
