package sessions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmv-prep/backend/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNoSession            = errors.New("no session for test")
	ErrIncompleteSubmission = errors.New("not every question has been answered")
	ErrEmptySession         = errors.New("cannot start a test without questions")
)

const dateLayout = "2006-01-02"

// QuestionLookup resolves question ids to questions for scoring.
type QuestionLookup interface {
	Question(id string) (models.Question, bool)
}

// Tracker owns one user's test sessions, attempt stats and activity dates.
// It is not safe for concurrent use; the service serializes access per user.
type Tracker struct {
	questions   QuestionLookup
	sessions    map[int]*models.TestSession
	stats       map[int]*models.TestAttemptStats
	activeDates []string

	dirtySessions map[int]bool
	dirtyStats    map[int]bool
	dirtyDates    bool

	now   func() time.Time
	newID func() string
}

func NewTracker(questions QuestionLookup) *Tracker {
	return &Tracker{
		questions:     questions,
		sessions:      map[int]*models.TestSession{},
		stats:         map[int]*models.TestAttemptStats{},
		dirtySessions: map[int]bool{},
		dirtyStats:    map[int]bool{},
		now:           func() time.Time { return time.Now().UTC() },
		newID:         uuid.NewString,
	}
}

// Rehydrate replaces the tracked state with what doc holds. Unsaved changes
// stay pending so they are still sent on the next save.
func (t *Tracker) Rehydrate(doc *models.UserProgressDocument) {
	doc.Normalize()
	t.sessions = make(map[int]*models.TestSession, len(doc.Sessions))
	for n, s := range doc.Sessions {
		t.sessions[n] = s.Clone()
	}
	t.stats = make(map[int]*models.TestAttemptStats, len(doc.Tests))
	for n, st := range doc.Tests {
		c := *st
		t.stats[n] = &c
	}
	t.activeDates = append([]string(nil), doc.ActiveDates...)
}

// ── Sessions ───────────────────────────────────────────

// Start returns the live session for the slot if there is one. Otherwise it
// opens a new session over questions, superseding any completed one.
func (t *Tracker) Start(testNumber int, state string, questions []models.Question) (*models.TestSession, bool, error) {
	if live := t.live(testNumber); live != nil {
		return live.Clone(), true, nil
	}
	if len(questions) == 0 {
		return nil, false, ErrEmptySession
	}

	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	s := &models.TestSession{
		ID:          t.newID(),
		TestNumber:  testNumber,
		State:       strings.ToUpper(state),
		QuestionIDs: ids,
		StartedAt:   t.now(),
	}
	t.sessions[testNumber] = s
	t.dirtySessions[testNumber] = true
	return s.Clone(), false, nil
}

// Resume returns the live incomplete session for the slot, or nil.
func (t *Tracker) Resume(testNumber int) *models.TestSession {
	if live := t.live(testNumber); live != nil {
		return live.Clone()
	}
	return nil
}

// Discard drops the slot's live session without touching stats.
func (t *Tracker) Discard(testNumber int) {
	if _, ok := t.sessions[testNumber]; ok {
		delete(t.sessions, testNumber)
		t.dirtySessions[testNumber] = true
	}
}

func (t *Tracker) live(testNumber int) *models.TestSession {
	s := t.sessions[testNumber]
	if s == nil || s.Completed {
		return nil
	}
	return s
}

// Answer records letter for the question at index. It reports false and
// changes nothing when the index is out of range, already answered, the
// session is complete, or the letter is not A-D.
func (t *Tracker) Answer(testNumber, index int, letter string) (bool, error) {
	s := t.sessions[testNumber]
	if s == nil {
		return false, fmt.Errorf("%w %d", ErrNoSession, testNumber)
	}
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if s.Completed || index < 0 || index >= len(s.QuestionIDs) || !models.ValidAnswerLetters[letter] {
		return false, nil
	}
	if _, answered := s.AnswerAt(index); answered {
		return false, nil
	}

	s.Answers = append(s.Answers, models.Answer{Index: index, Letter: letter})
	t.dirtySessions[testNumber] = true
	t.MarkActive()
	return true, nil
}

// Complete scores the session and folds the result into the slot's stats.
// Completing an already completed session returns its score again.
func (t *Tracker) Complete(testNumber int) (int, error) {
	s := t.sessions[testNumber]
	if s == nil {
		return 0, fmt.Errorf("%w %d", ErrNoSession, testNumber)
	}
	if s.Completed && s.Score != nil {
		return *s.Score, nil
	}
	if s.NextUnanswered() != -1 {
		return 0, fmt.Errorf("%w: %d of %d answered", ErrIncompleteSubmission, len(s.Answers), len(s.QuestionIDs))
	}

	score := t.score(s)
	now := t.now()
	s.Completed = true
	s.Score = &score
	s.CompletedAt = &now

	st := t.stats[testNumber]
	if st == nil {
		st = &models.TestAttemptStats{}
		t.stats[testNumber] = st
	}
	st.Record(score, now)

	t.dirtySessions[testNumber] = true
	t.dirtyStats[testNumber] = true
	return score, nil
}

func (t *Tracker) score(s *models.TestSession) int {
	score := 0
	for _, a := range s.Answers {
		q, ok := t.questions.Question(s.QuestionIDs[a.Index])
		if ok && q.IsCorrect(a.Letter) {
			score++
		}
	}
	return score
}

// ── Stats & Activity ───────────────────────────────────

// Stats returns a copy of the slot's attempt stats, or nil before the first attempt.
func (t *Tracker) Stats(testNumber int) *models.TestAttemptStats {
	st := t.stats[testNumber]
	if st == nil {
		return nil
	}
	c := *st
	return &c
}

// MarkActive adds today's UTC date to the activity log.
func (t *Tracker) MarkActive() {
	today := t.now().UTC().Format(dateLayout)
	for _, d := range t.activeDates {
		if d == today {
			return
		}
	}
	t.activeDates = models.MergeDates(t.activeDates, []string{today})
	t.dirtyDates = true
}

func (t *Tracker) ActiveDates() []string {
	return append([]string(nil), t.activeDates...)
}

// ── Persistence ────────────────────────────────────────

// Pending returns everything changed since the last MarkSaved. Completed
// sessions are sent as deletions since their result lives in the stats.
func (t *Tracker) Pending() models.ProgressUpdate {
	var u models.ProgressUpdate
	if len(t.dirtySessions) > 0 {
		u.Sessions = make(map[int]*models.TestSession, len(t.dirtySessions))
		for n := range t.dirtySessions {
			u.Sessions[n] = t.live(n).Clone()
		}
	}
	if len(t.dirtyStats) > 0 {
		u.Tests = make(map[int]*models.TestAttemptStats, len(t.dirtyStats))
		for n := range t.dirtyStats {
			u.Tests[n] = t.Stats(n)
		}
	}
	if t.dirtyDates {
		u.ActiveDates = t.ActiveDates()
	}
	return u
}

func (t *Tracker) MarkSaved() {
	t.dirtySessions = map[int]bool{}
	t.dirtyStats = map[int]bool{}
	t.dirtyDates = false
}
