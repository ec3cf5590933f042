package models

type QuestionType string

const (
	QuestionUniversal QuestionType = "universal"
	QuestionState     QuestionType = "state"
)

// UniversalState is the state code carried by questions that apply to every state.
const UniversalState = "ALL"

// AnswerLetters are the option letters in option-index order.
var AnswerLetters = []string{"A", "B", "C", "D"}

var ValidAnswerLetters = map[string]bool{
	"A": true,
	"B": true,
	"C": true,
	"D": true,
}

// ── Core Structs ───────────────────────────────────────

type Question struct {
	ID            string       `json:"id" yaml:"id"`
	Type          QuestionType `json:"type" yaml:"type"`
	State         string       `json:"state" yaml:"state"`
	Category      string       `json:"category" yaml:"category"`
	Text          string       `json:"question" yaml:"question"`
	Options       []string     `json:"options" yaml:"options"`
	CorrectAnswer string       `json:"correct_answer" yaml:"correct_answer"`
	CorrectIndex  int          `json:"correct_index" yaml:"correct_index"`
	Explanation   string       `json:"explanation" yaml:"explanation"`
}

// IsCorrect reports whether letter matches the correct option.
func (q Question) IsCorrect(letter string) bool {
	return q.CorrectAnswer == letter
}

// ToServed strips the answer and explanation for presentation.
func (q Question) ToServed() ServedQuestion {
	return ServedQuestion{
		ID:       q.ID,
		State:    q.State,
		Category: q.Category,
		Text:     q.Text,
		Options:  append([]string(nil), q.Options...),
	}
}

// ── Serving Types (strip answers) ──────────────────────

type ServedQuestion struct {
	ID       string   `json:"id"`
	State    string   `json:"state"`
	Category string   `json:"category"`
	Text     string   `json:"question"`
	Options  []string `json:"options"`
}

type StateSummary struct {
	State         string `json:"state"`
	PoolSize      int    `json:"pool_size"`
	TrainingSets  int    `json:"training_sets"`
	StateSpecific int    `json:"state_specific"`
}
