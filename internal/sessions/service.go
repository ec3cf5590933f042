package sessions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmv-prep/backend/internal/events"
	"github.com/dmv-prep/backend/internal/gamification"
	"github.com/dmv-prep/backend/internal/models"
	"github.com/dmv-prep/backend/internal/progress"
	"github.com/dmv-prep/backend/internal/questions"
)

var (
	ErrLocked        = errors.New("premium access required")
	ErrStateRequired = errors.New("select a state first")
	ErrUnknownState  = errors.New("unknown state")
	ErrInvalidAnswer = errors.New("answer must be one of A, B, C, D")
)

const (
	DefaultPassPercent  = 80
	defaultStoreTimeout = 5 * time.Second
	defaultRefreshAfter = time.Minute
)

type Config struct {
	PassPercent int
	Gate        questions.Gate
	// StoreTimeout bounds each Load and Save.
	StoreTimeout time.Duration
	// RefreshAfter is how long a user's document is trusted before it is
	// reloaded to pick up writes from other devices and collaborators.
	// Users idle for longer with nothing left to save are dropped from memory.
	RefreshAfter time.Duration
}

// Service runs tests and training for many users over one question bank.
// Each user's state lives in memory behind its own mutex and is written
// through to the progress store after every change. Store failures are
// logged and never fail the request.
type Service struct {
	bank      *questions.Bank
	generator *questions.Generator
	training  *questions.TrainingSelector
	store     progress.Store
	publisher events.Publisher
	cfg       Config

	mu        sync.Mutex
	users     map[string]*userState
	lastSweep time.Time
	now       func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type userState struct {
	mu            sync.Mutex
	doc           *models.UserProgressDocument
	tracker       *Tracker
	loadedAt      time.Time
	dirtyState    bool
	dirtyTraining map[string]bool
	lastShown     map[string]string

	// evicted is set under both locks when the state leaves Service.users.
	evicted bool
}

func NewService(bank *questions.Bank, generator *questions.Generator, training *questions.TrainingSelector,
	store progress.Store, publisher events.Publisher, cfg Config) *Service {
	if cfg.PassPercent <= 0 || cfg.PassPercent > 100 {
		cfg.PassPercent = DefaultPassPercent
	}
	if cfg.Gate == (questions.Gate{}) {
		cfg.Gate = questions.DefaultGate()
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}
	if cfg.RefreshAfter <= 0 {
		cfg.RefreshAfter = defaultRefreshAfter
	}
	return &Service{
		bank:      bank,
		generator: generator,
		training:  training,
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		users:     map[string]*userState{},
		now:       time.Now,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ── User State ─────────────────────────────────────────

// acquire returns the user's state locked. The caller must unlock it.
func (s *Service) acquire(ctx context.Context, userID string) *userState {
	for {
		s.mu.Lock()
		s.evictIdle()
		st, ok := s.users[userID]
		if !ok {
			st = &userState{
				tracker:       NewTracker(s.bank),
				dirtyTraining: map[string]bool{},
				lastShown:     map[string]string{},
			}
			s.users[userID] = st
		}
		s.mu.Unlock()

		st.mu.Lock()
		if st.evicted {
			st.mu.Unlock()
			continue
		}
		if st.doc == nil || s.now().Sub(st.loadedAt) > s.cfg.RefreshAfter {
			s.load(ctx, userID, st)
		}
		return st
	}
}

// evictIdle drops users whose document is stale and fully saved. It runs at
// most once per RefreshAfter and skips users that are busy. s.mu must be held.
func (s *Service) evictIdle() {
	now := s.now()
	if now.Sub(s.lastSweep) < s.cfg.RefreshAfter {
		return
	}
	s.lastSweep = now

	var evicted int
	for id, st := range s.users {
		if !st.mu.TryLock() {
			continue
		}
		if now.Sub(st.loadedAt) > s.cfg.RefreshAfter && st.pending().IsEmpty() {
			st.evicted = true
			delete(s.users, id)
			evicted++
		}
		st.mu.Unlock()
	}
	if evicted > 0 {
		log.Printf("[sessions] evicted %d idle users, %d remain in memory", evicted, len(s.users))
	}
}

func (s *Service) load(ctx context.Context, userID string, st *userState) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout)
	defer cancel()

	doc, err := s.store.Load(ctx, userID)
	switch {
	case errors.Is(err, progress.ErrNotFound):
		doc = models.NewUserProgressDocument(userID)
	case err != nil:
		log.Printf("WARN: [sessions] load progress for user %s: %v", userID, err)
		persistenceFailures.WithLabelValues("load").Inc()
		st.loadedAt = s.now()
		if st.doc != nil {
			return
		}
		doc = models.NewUserProgressDocument(userID)
	}

	// Changes that have not reached the store yet win over the loaded copy.
	progress.Merge(doc, st.pending())
	st.doc = doc
	st.tracker.Rehydrate(doc)
	st.loadedAt = s.now()
}

func (st *userState) pending() models.ProgressUpdate {
	update := st.tracker.Pending()
	if st.doc == nil {
		return update
	}
	if st.dirtyState {
		state := st.doc.SelectedState
		update.SelectedState = &state
	}
	if len(st.dirtyTraining) > 0 {
		update.Training = make(map[string]*models.TrainingSetProgress, len(st.dirtyTraining))
		for id := range st.dirtyTraining {
			update.Training[id] = st.doc.Training[id].Clone()
		}
	}
	return update
}

func (st *userState) markSaved() {
	st.tracker.MarkSaved()
	st.dirtyState = false
	st.dirtyTraining = map[string]bool{}
}

// persist writes everything pending. On failure the changes stay pending
// and ride along with the next save.
func (s *Service) persist(ctx context.Context, userID string, st *userState) {
	update := st.pending()
	if update.IsEmpty() {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.StoreTimeout)
	defer cancel()

	if err := s.store.Save(ctx, userID, update); err != nil {
		log.Printf("WARN: [sessions] save progress for user %s: %v", userID, err)
		persistenceFailures.WithLabelValues("save").Inc()
		return
	}
	st.markSaved()
}

func (s *Service) publish(ev *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ev); err != nil {
		log.Printf("WARN: [sessions] publish %s for user %s: %v", ev.EventType, ev.UserID, err)
	}
}

func (s *Service) premium(st *userState) bool {
	return st.doc.Subscription.Active
}

// ── Progress ───────────────────────────────────────────

func (s *Service) Progress(ctx context.Context, userID string) models.ProgressResponse {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()
	return s.summary(st)
}

func (s *Service) summary(st *userState) models.ProgressResponse {
	resp := models.ProgressResponse{
		SelectedState: st.doc.SelectedState,
		Premium:       s.premium(st),
		ReferralCount: st.doc.ReferralCount,
		ActiveDates:   st.tracker.ActiveDates(),
		Persisted:     st.pending().IsEmpty(),
	}
	resp.Streak = gamification.Streak(resp.ActiveDates, time.Now())
	for n := 1; n <= s.generator.Slots(); n++ {
		resp.Tests = append(resp.Tests, models.TestSlotSummary{
			TestNumber: n,
			Unlocked:   s.cfg.Gate.TestUnlocked(n, resp.Premium, resp.ReferralCount),
			InProgress: st.tracker.Resume(n) != nil,
			Stats:      st.tracker.Stats(n),
		})
	}
	return resp
}

func (s *Service) SelectState(ctx context.Context, userID, state string) (models.ProgressResponse, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if !s.bank.HasState(state) {
		return models.ProgressResponse{}, fmt.Errorf("%w: %q", ErrUnknownState, state)
	}

	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	if st.doc.SelectedState != state {
		st.doc.SelectedState = state
		st.dirtyState = true
		s.persist(ctx, userID, st)
	}
	return s.summary(st), nil
}

// ── Tests ──────────────────────────────────────────────

func (s *Service) checkTest(st *userState, testNumber int) error {
	if testNumber < 1 || testNumber > s.generator.Slots() {
		return fmt.Errorf("%w: %d", questions.ErrInvalidTestNumber, testNumber)
	}
	if st.doc.SelectedState == "" {
		return ErrStateRequired
	}
	if !s.cfg.Gate.TestUnlocked(testNumber, s.premium(st), st.doc.ReferralCount) {
		return fmt.Errorf("%w: test %d", ErrLocked, testNumber)
	}
	return nil
}

// StartTest resumes the slot's live session or generates a new one for the
// selected state.
func (s *Service) StartTest(ctx context.Context, userID string, testNumber int) (models.TestSessionResponse, error) {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	if err := s.checkTest(st, testNumber); err != nil {
		return models.TestSessionResponse{}, err
	}
	state := st.doc.SelectedState

	if live := st.tracker.Resume(testNumber); live != nil {
		if live.State == state {
			testsStarted.WithLabelValues(state, "true").Inc()
			return s.sessionResponse(live, true), nil
		}
		// The user switched states; the old session no longer applies.
		st.tracker.Discard(testNumber)
	}

	s.rngMu.Lock()
	qs, err := s.generator.Generate(testNumber, state, s.rng)
	s.rngMu.Unlock()
	if err != nil {
		return models.TestSessionResponse{}, err
	}

	session, resumed, err := st.tracker.Start(testNumber, state, qs)
	if err != nil {
		return models.TestSessionResponse{}, err
	}
	log.Printf("[sessions] user %s started test %d (%s, %d questions)", userID, testNumber, state, len(qs))
	testsStarted.WithLabelValues(state, strconv.FormatBool(resumed)).Inc()

	s.persist(ctx, userID, st)
	return s.sessionResponse(session, resumed), nil
}

// GetTest returns the slot's live session without starting one.
func (s *Service) GetTest(ctx context.Context, userID string, testNumber int) (models.TestSessionResponse, error) {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	live := st.tracker.Resume(testNumber)
	if live == nil {
		return models.TestSessionResponse{}, fmt.Errorf("%w %d", ErrNoSession, testNumber)
	}
	return s.sessionResponse(live, true), nil
}

func (s *Service) sessionResponse(session *models.TestSession, resumed bool) models.TestSessionResponse {
	resp := models.TestSessionResponse{
		SessionID:      session.ID,
		TestNumber:     session.TestNumber,
		State:          session.State,
		Questions:      make([]models.ServedQuestion, 0, len(session.QuestionIDs)),
		Answers:        session.Answers,
		NextIndex:      session.NextUnanswered(),
		Completed:      session.Completed,
		Resumed:        resumed,
		StartedAt:      session.StartedAt,
		TotalQuestions: len(session.QuestionIDs),
	}
	if resp.Answers == nil {
		resp.Answers = []models.Answer{}
	}
	for _, id := range session.QuestionIDs {
		q, ok := s.bank.Question(id)
		if !ok {
			log.Printf("WARN: [sessions] session %s references unknown question %s", session.ID, id)
			q = models.Question{ID: id}
		}
		resp.Questions = append(resp.Questions, q.ToServed())
	}
	return resp
}

// AnswerTest records an answer. Out-of-range, repeated and late answers are
// reported with Recorded=false and change nothing.
func (s *Service) AnswerTest(ctx context.Context, userID string, testNumber, index int, letter string) (models.TestAnswerResponse, error) {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	recorded, err := st.tracker.Answer(testNumber, index, letter)
	if err != nil {
		return models.TestAnswerResponse{}, err
	}

	resp := models.TestAnswerResponse{Recorded: recorded, Index: index}
	session := st.tracker.sessions[testNumber]
	resp.AnsweredCount = len(session.Answers)
	resp.RemainingCount = len(session.QuestionIDs) - len(session.Answers)

	if stored, ok := session.AnswerAt(index); ok {
		q, _ := s.bank.Question(session.QuestionIDs[index])
		resp.Answer = stored
		resp.Correct = q.IsCorrect(stored)
		resp.CorrectAnswer = q.CorrectAnswer
		resp.Explanation = q.Explanation
	}

	if recorded {
		answersRecorded.WithLabelValues("test", strconv.FormatBool(resp.Correct)).Inc()
		s.persist(ctx, userID, st)
	}
	return resp, nil
}

func (s *Service) CompleteTest(ctx context.Context, userID string, testNumber int) (models.TestCompleteResponse, error) {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	session := st.tracker.sessions[testNumber]
	if session == nil {
		return models.TestCompleteResponse{}, fmt.Errorf("%w %d", ErrNoSession, testNumber)
	}
	alreadyDone := session.Completed

	var previousBest int
	var hadStats bool
	if prev := st.tracker.Stats(testNumber); prev != nil {
		previousBest, hadStats = prev.BestScore, true
	}

	score, err := st.tracker.Complete(testNumber)
	if err != nil {
		return models.TestCompleteResponse{}, err
	}

	total := len(session.QuestionIDs)
	resp := models.TestCompleteResponse{
		TestNumber: testNumber,
		Score:      score,
		Total:      total,
		Passed:     total > 0 && score*100 >= s.cfg.PassPercent*total,
	}
	if stats := st.tracker.Stats(testNumber); stats != nil {
		resp.Stats = *stats
	}
	if alreadyDone {
		return resp, nil
	}
	resp.NewBestScore = !hadStats || score > previousBest

	log.Printf("[sessions] user %s completed test %d: %d/%d", userID, testNumber, score, total)
	testsCompleted.WithLabelValues(session.State, strconv.FormatBool(resp.Passed)).Inc()
	if total > 0 {
		testScores.Observe(float64(score) * 100 / float64(total))
	}

	s.persist(ctx, userID, st)
	s.publish(&events.Event{
		EventType:    events.TestCompleted,
		UserID:       userID,
		State:        session.State,
		TestNumber:   testNumber,
		Score:        score,
		Total:        total,
		BestScore:    resp.Stats.BestScore,
		AttemptCount: resp.Stats.AttemptCount,
		Passed:       resp.Passed,
	})
	return resp, nil
}

// ── Training ───────────────────────────────────────────

func (s *Service) TrainingSets(ctx context.Context, userID string) ([]models.TrainingSetSummary, error) {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	if st.doc.SelectedState == "" {
		return nil, ErrStateRequired
	}

	sets := s.training.Sets(st.doc.SelectedState)
	out := make([]models.TrainingSetSummary, 0, len(sets))
	for _, set := range sets {
		out = append(out, s.setSummary(st, set))
	}
	return out, nil
}

func (s *Service) setSummary(st *userState, set questions.TrainingSet) models.TrainingSetSummary {
	p := st.doc.Training[set.ID]
	summary := models.TrainingSetSummary{
		SetID:    set.ID,
		Index:    set.Index,
		Total:    len(set.QuestionIDs),
		Mastered: set.MasteredCount(p),
		Complete: set.IsComplete(p),
		Unlocked: s.cfg.Gate.TrainingSetUnlocked(set.Index, s.premium(st), st.doc.ReferralCount),
	}
	if p != nil {
		summary.WrongQueue = len(p.WrongQueue)
	}
	return summary
}

func (s *Service) trainingSet(st *userState, setID string) (questions.TrainingSet, error) {
	set, err := s.training.Set(setID)
	if err != nil {
		return questions.TrainingSet{}, err
	}
	if !s.cfg.Gate.TrainingSetUnlocked(set.Index, s.premium(st), st.doc.ReferralCount) {
		return questions.TrainingSet{}, fmt.Errorf("%w: training set %s", ErrLocked, set.ID)
	}
	return set, nil
}

func (s *Service) NextTraining(ctx context.Context, userID, setID string) (models.TrainingNextResponse, error) {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	set, err := s.trainingSet(st, setID)
	if err != nil {
		return models.TrainingNextResponse{}, err
	}

	p := st.doc.Training[set.ID]
	resp := models.TrainingNextResponse{
		SetID:    set.ID,
		Total:    len(set.QuestionIDs),
		Mastered: set.MasteredCount(p),
	}
	resp.Remaining = resp.Total - resp.Mastered

	q, ok := s.training.Next(set, p, st.lastShown[set.ID])
	if !ok {
		resp.Complete = true
		return resp, nil
	}
	st.lastShown[set.ID] = q.ID
	served := q.ToServed()
	resp.Question = &served
	return resp, nil
}

func (s *Service) AnswerTraining(ctx context.Context, userID, setID, questionID, letter string) (models.TrainingAnswerResponse, error) {
	st := s.acquire(ctx, userID)
	defer st.mu.Unlock()

	set, err := s.trainingSet(st, setID)
	if err != nil {
		return models.TrainingAnswerResponse{}, err
	}

	letter = strings.ToUpper(strings.TrimSpace(letter))
	if !models.ValidAnswerLetters[letter] {
		return models.TrainingAnswerResponse{}, fmt.Errorf("%w: %q", ErrInvalidAnswer, letter)
	}

	p := st.doc.Training[set.ID]
	if p == nil {
		p = &models.TrainingSetProgress{}
		st.doc.Training[set.ID] = p
	}
	wasComplete := set.IsComplete(p)

	q, correct, err := s.training.Record(set, p, questionID, letter)
	if err != nil {
		return models.TrainingAnswerResponse{}, err
	}
	st.lastShown[set.ID] = q.ID
	st.dirtyTraining[set.ID] = true
	st.tracker.MarkActive()
	answersRecorded.WithLabelValues("training", strconv.FormatBool(correct)).Inc()

	resp := models.TrainingAnswerResponse{
		SetID:         set.ID,
		QuestionID:    q.ID,
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
		Mastered:      set.MasteredCount(p),
		WrongQueue:    len(p.WrongQueue),
		Total:         len(set.QuestionIDs),
		SetComplete:   set.IsComplete(p),
	}

	s.persist(ctx, userID, st)
	if resp.SetComplete && !wasComplete {
		log.Printf("[sessions] user %s mastered training set %s", userID, set.ID)
		trainingSetsCompleted.Inc()
		s.publish(&events.Event{
			EventType: events.TrainingCompleted,
			UserID:    userID,
			State:     set.State,
			SetID:     set.ID,
		})
	}
	return resp, nil
}
