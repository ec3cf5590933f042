package questions

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/dmv-prep/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// Bank is the in-memory question set. It is read-only once Load returns.
type Bank struct {
	byID    map[string]models.Question
	byState map[string][]models.Question
}

// Load reads every bank file in dir. Files are named after their partition:
// CA.json, TX.yaml, and ALL.json for the universal questions.
func Load(fsys fs.FS, dir string) (*Bank, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read bank dir: %w", err)
	}

	bank := &Bank{
		byID:    make(map[string]models.Question),
		byState: make(map[string][]models.Question),
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		partition := strings.ToUpper(strings.TrimSuffix(e.Name(), path.Ext(e.Name())))

		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		var list []models.Question
		if ext == ".json" {
			err = json.Unmarshal(data, &list)
		} else {
			err = yaml.Unmarshal(data, &list)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}

		for i := range list {
			q, err := normalizeQuestion(list[i], partition)
			if err != nil {
				return nil, fmt.Errorf("%s question %d: %w", e.Name(), i+1, err)
			}
			if _, dup := bank.byID[q.ID]; dup {
				return nil, fmt.Errorf("%s question %d: duplicate id %q", e.Name(), i+1, q.ID)
			}
			bank.byID[q.ID] = q
			bank.byState[q.State] = append(bank.byState[q.State], q)
		}
	}

	for state := range bank.byState {
		sortByID(bank.byState[state])
	}

	log.Printf("[bank] loaded %d questions across %d partitions", len(bank.byID), len(bank.byState))
	return bank, nil
}

// NewBank builds a bank from already-parsed questions, applying the same
// validation as Load.
func NewBank(list []models.Question) (*Bank, error) {
	bank := &Bank{
		byID:    make(map[string]models.Question),
		byState: make(map[string][]models.Question),
	}
	for i := range list {
		partition := list[i].State
		if list[i].Type == models.QuestionUniversal {
			partition = models.UniversalState
		}
		q, err := normalizeQuestion(list[i], strings.ToUpper(partition))
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", i+1, err)
		}
		if _, dup := bank.byID[q.ID]; dup {
			return nil, fmt.Errorf("question %d: duplicate id %q", i+1, q.ID)
		}
		bank.byID[q.ID] = q
		bank.byState[q.State] = append(bank.byState[q.State], q)
	}
	for state := range bank.byState {
		sortByID(bank.byState[state])
	}
	return bank, nil
}

func normalizeQuestion(q models.Question, partition string) (models.Question, error) {
	q.ID = strings.TrimSpace(q.ID)
	if q.ID == "" {
		return q, fmt.Errorf("missing id")
	}
	if partition == "" {
		return q, fmt.Errorf("missing state code")
	}
	if partition == models.UniversalState {
		q.Type = models.QuestionUniversal
	} else {
		q.Type = models.QuestionState
	}
	q.State = partition

	if strings.TrimSpace(q.Text) == "" {
		return q, fmt.Errorf("question %q has empty text", q.ID)
	}
	if len(q.Options) != len(models.AnswerLetters) {
		return q, fmt.Errorf("question %q has %d options, expected %d", q.ID, len(q.Options), len(models.AnswerLetters))
	}

	q.CorrectAnswer = strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
	if q.CorrectAnswer == "" {
		if q.CorrectIndex < 0 || q.CorrectIndex >= len(models.AnswerLetters) {
			return q, fmt.Errorf("question %q has correct index %d out of range", q.ID, q.CorrectIndex)
		}
		q.CorrectAnswer = models.AnswerLetters[q.CorrectIndex]
	}
	if !models.ValidAnswerLetters[q.CorrectAnswer] {
		return q, fmt.Errorf("question %q has invalid correct answer %q", q.ID, q.CorrectAnswer)
	}
	idx := letterIndex(q.CorrectAnswer)
	// A zero index is the unset value; only a non-zero index can disagree.
	if q.CorrectIndex != 0 && q.CorrectIndex != idx {
		return q, fmt.Errorf("question %q: correct answer %s does not match index %d", q.ID, q.CorrectAnswer, q.CorrectIndex)
	}
	q.CorrectIndex = idx
	return q, nil
}

func letterIndex(letter string) int {
	for i, l := range models.AnswerLetters {
		if l == letter {
			return i
		}
	}
	return -1
}

func sortByID(list []models.Question) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

// Question looks up a question by id.
func (b *Bank) Question(id string) (models.Question, bool) {
	q, ok := b.byID[id]
	return q, ok
}

// Pool returns the state-specific and universal questions for state, sorted by id.
// The universal partition alone is not a state and yields nil.
func (b *Bank) Pool(state string) []models.Question {
	state = strings.ToUpper(state)
	if state == "" || state == models.UniversalState {
		return nil
	}
	specific := b.byState[state]
	if len(specific) == 0 {
		return nil
	}
	pool := make([]models.Question, 0, len(specific)+len(b.byState[models.UniversalState]))
	pool = append(pool, specific...)
	pool = append(pool, b.byState[models.UniversalState]...)
	sortByID(pool)
	return pool
}

// HasState reports whether state has its own partition.
func (b *Bank) HasState(state string) bool {
	state = strings.ToUpper(state)
	return state != models.UniversalState && len(b.byState[state]) > 0
}

// States lists the loaded state codes, sorted.
func (b *Bank) States() []string {
	var states []string
	for s := range b.byState {
		if s != models.UniversalState {
			states = append(states, s)
		}
	}
	sort.Strings(states)
	return states
}

func (b *Bank) Size() int {
	return len(b.byID)
}

// StateSize returns the number of state-specific questions for state.
func (b *Bank) StateSize(state string) int {
	return len(b.byState[strings.ToUpper(state)])
}
