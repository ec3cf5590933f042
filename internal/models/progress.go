package models

import (
	"sort"
	"time"
)

// ── Test Sessions ──────────────────────────────────────

type Answer struct {
	Index  int    `json:"index" bson:"index"`
	Letter string `json:"letter" bson:"letter"`
}

// TestSession is one attempt at a numbered test. QuestionIDs are fixed at
// creation; Answers keep insertion order and hold at most one entry per index.
type TestSession struct {
	ID          string     `json:"id" bson:"id"`
	TestNumber  int        `json:"test_number" bson:"test_number"`
	State       string     `json:"state" bson:"state"`
	QuestionIDs []string   `json:"question_ids" bson:"question_ids"`
	Answers     []Answer   `json:"answers" bson:"answers"`
	Completed   bool       `json:"completed" bson:"completed"`
	Score       *int       `json:"score,omitempty" bson:"score,omitempty"`
	StartedAt   time.Time  `json:"started_at" bson:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// AnswerAt returns the stored letter for index.
func (s *TestSession) AnswerAt(index int) (string, bool) {
	for _, a := range s.Answers {
		if a.Index == index {
			return a.Letter, true
		}
	}
	return "", false
}

// NextUnanswered returns the lowest index without an answer, or -1 when all are answered.
func (s *TestSession) NextUnanswered() int {
	answered := make(map[int]bool, len(s.Answers))
	for _, a := range s.Answers {
		answered[a.Index] = true
	}
	for i := range s.QuestionIDs {
		if !answered[i] {
			return i
		}
	}
	return -1
}

func (s *TestSession) Clone() *TestSession {
	if s == nil {
		return nil
	}
	c := *s
	c.QuestionIDs = append([]string(nil), s.QuestionIDs...)
	c.Answers = append([]Answer(nil), s.Answers...)
	if s.Score != nil {
		score := *s.Score
		c.Score = &score
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}

type TestAttemptStats struct {
	AttemptCount    int        `json:"attempt_count" bson:"attemptCount"`
	FirstScore      *int       `json:"first_score,omitempty" bson:"firstScore,omitempty"`
	BestScore       int        `json:"best_score" bson:"bestScore"`
	LastAttemptDate *time.Time `json:"last_attempt_date,omitempty" bson:"lastAttemptDate,omitempty"`
}

// Record folds a completed attempt into the stats.
func (s *TestAttemptStats) Record(score int, at time.Time) {
	s.AttemptCount++
	if s.AttemptCount == 1 || s.FirstScore == nil {
		first := score
		s.FirstScore = &first
	}
	if score > s.BestScore {
		s.BestScore = score
	}
	s.LastAttemptDate = &at
}

// ── Training ───────────────────────────────────────────

// TrainingSetProgress tracks one training set. An id is never in both
// MasteredIDs and WrongQueue, and mastered ids never leave MasteredIDs.
type TrainingSetProgress struct {
	MasteredIDs  []string `json:"mastered_ids" bson:"masteredIds"`
	WrongQueue   []string `json:"wrong_queue" bson:"wrongQueue"`
	CorrectCount int      `json:"correct_count" bson:"correctCount"`
}

func (p *TrainingSetProgress) IsMastered(id string) bool {
	return contains(p.MasteredIDs, id)
}

func (p *TrainingSetProgress) InWrongQueue(id string) bool {
	return contains(p.WrongQueue, id)
}

// MarkCorrect masters id and drops it from the wrong-queue.
func (p *TrainingSetProgress) MarkCorrect(id string) {
	p.WrongQueue = remove(p.WrongQueue, id)
	if !p.IsMastered(id) {
		p.MasteredIDs = append(p.MasteredIDs, id)
	}
	p.CorrectCount = len(p.MasteredIDs)
}

// MarkWrong queues id for re-presentation. Mastered ids are left alone.
func (p *TrainingSetProgress) MarkWrong(id string) {
	if p.IsMastered(id) || p.InWrongQueue(id) {
		return
	}
	p.WrongQueue = append(p.WrongQueue, id)
}

func (p *TrainingSetProgress) Clone() *TrainingSetProgress {
	if p == nil {
		return nil
	}
	return &TrainingSetProgress{
		MasteredIDs:  append([]string(nil), p.MasteredIDs...),
		WrongQueue:   append([]string(nil), p.WrongQueue...),
		CorrectCount: p.CorrectCount,
	}
}

// ── Progress Document ──────────────────────────────────

type Subscription struct {
	Active    bool       `json:"active" bson:"active"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" bson:"updatedAt,omitempty"`
}

// UserProgressDocument is the persisted per-user aggregate.
type UserProgressDocument struct {
	UserID        string                          `json:"user_id" bson:"_id"`
	SelectedState string                          `json:"selected_state" bson:"selectedState"`
	Tests         map[int]*TestAttemptStats       `json:"tests" bson:"tests"`
	Sessions      map[int]*TestSession            `json:"sessions" bson:"sessions"`
	Training      map[string]*TrainingSetProgress `json:"training" bson:"training"`
	Subscription  Subscription                    `json:"subscription" bson:"subscription"`
	ReferralCount int                             `json:"referral_count" bson:"referralCount"`
	ActiveDates   []string                        `json:"active_dates" bson:"activeDates"`
	UpdatedAt     time.Time                       `json:"updated_at" bson:"updatedAt"`
}

func NewUserProgressDocument(userID string) *UserProgressDocument {
	return &UserProgressDocument{
		UserID:   userID,
		Tests:    map[int]*TestAttemptStats{},
		Sessions: map[int]*TestSession{},
		Training: map[string]*TrainingSetProgress{},
	}
}

// Normalize fills nil maps, drops completed sessions and restores the
// training invariants on documents read back from a store.
func (d *UserProgressDocument) Normalize() {
	if d.Tests == nil {
		d.Tests = map[int]*TestAttemptStats{}
	}
	if d.Sessions == nil {
		d.Sessions = map[int]*TestSession{}
	}
	if d.Training == nil {
		d.Training = map[string]*TrainingSetProgress{}
	}
	for n, s := range d.Sessions {
		if s == nil || s.Completed {
			delete(d.Sessions, n)
		}
	}
	for id, p := range d.Training {
		if p == nil {
			delete(d.Training, id)
			continue
		}
		p.MasteredIDs = dedupe(p.MasteredIDs)
		var queue []string
		for _, q := range dedupe(p.WrongQueue) {
			if !p.IsMastered(q) {
				queue = append(queue, q)
			}
		}
		p.WrongQueue = queue
		if p.CorrectCount < len(p.MasteredIDs) {
			p.CorrectCount = len(p.MasteredIDs)
		}
	}
	d.ActiveDates = MergeDates(d.ActiveDates, nil)
}

// ProgressUpdate is a partial write. Nil fields are left untouched by the
// store; a nil entry in Sessions deletes that slot's session.
type ProgressUpdate struct {
	SelectedState *string                         `json:"selected_state,omitempty"`
	Tests         map[int]*TestAttemptStats       `json:"tests,omitempty"`
	Sessions      map[int]*TestSession            `json:"sessions,omitempty"`
	Training      map[string]*TrainingSetProgress `json:"training,omitempty"`
	ActiveDates   []string                        `json:"active_dates,omitempty"`
	Subscription  *Subscription                   `json:"subscription,omitempty"`
}

func (u ProgressUpdate) IsEmpty() bool {
	return u.SelectedState == nil && len(u.Tests) == 0 && len(u.Sessions) == 0 &&
		len(u.Training) == 0 && len(u.ActiveDates) == 0 && u.Subscription == nil
}

// MergeDates returns the sorted, deduplicated union of two ISO date lists.
func MergeDates(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, d := range list {
			if d == "" || seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func remove(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(list []string) []string {
	seen := make(map[string]bool, len(list))
	var out []string
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
