package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dmv-prep/backend/internal/events"
	"github.com/dmv-prep/backend/internal/models"
	"github.com/dmv-prep/backend/internal/progress"
	"github.com/dmv-prep/backend/internal/questions"
)

// testBank has n CA questions and 10 universal ones; every correct answer is "B".
func testBank(t *testing.T, n int) *questions.Bank {
	t.Helper()
	var list []models.Question
	add := func(state string, count int) {
		for i := 1; i <= count; i++ {
			list = append(list, models.Question{
				ID:            fmt.Sprintf("%s-%03d", state, i),
				State:         state,
				Text:          fmt.Sprintf("%s question %d", state, i),
				Options:       []string{"w", "x", "y", "z"},
				CorrectAnswer: "B",
				Explanation:   "see handbook",
			})
		}
	}
	add("CA", n)
	add(models.UniversalState, 10)
	bank, err := questions.NewBank(list)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	return bank
}

var errStoreDown = errors.New("store unavailable")

// memStore is a Store that merges in memory and can be switched to fail.
type memStore struct {
	mu       sync.Mutex
	docs     map[string]*models.UserProgressDocument
	failLoad bool
	failSave bool
	saves    int
	loads    int
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]*models.UserProgressDocument{}}
}

func (m *memStore) Load(ctx context.Context, userID string) (*models.UserProgressDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad {
		return nil, errStoreDown
	}
	m.loads++
	doc, ok := m.docs[userID]
	if !ok {
		return nil, progress.ErrNotFound
	}
	return copyDoc(doc), nil
}

func (m *memStore) Save(ctx context.Context, userID string, update models.ProgressUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errStoreDown
	}
	doc, ok := m.docs[userID]
	if !ok {
		doc = models.NewUserProgressDocument(userID)
		m.docs[userID] = doc
	}
	progress.Merge(doc, update)
	m.saves++
	return nil
}

func (m *memStore) doc(userID string) *models.UserProgressDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[userID]; ok {
		return copyDoc(d)
	}
	return nil
}

func (m *memStore) put(doc *models.UserProgressDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.UserID] = copyDoc(doc)
}

func (m *memStore) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *memStore) setFailSave(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = v
}

func copyDoc(d *models.UserProgressDocument) *models.UserProgressDocument {
	c := models.NewUserProgressDocument(d.UserID)
	progress.Merge(c, models.ProgressUpdate{SelectedState: &d.SelectedState, Tests: d.Tests, Sessions: d.Sessions, Training: d.Training, ActiveDates: d.ActiveDates, Subscription: &d.Subscription})
	c.ReferralCount = d.ReferralCount
	return c
}

func newTestService(t *testing.T, store progress.Store) (*Service, *events.MockPublisher) {
	t.Helper()
	bank := testBank(t, 40)
	pub := events.NewMockPublisher()
	svc := NewService(
		bank,
		questions.NewGenerator(bank, 10, 4),
		questions.NewTrainingSelector(bank, 5),
		store,
		pub,
		Config{PassPercent: 80, Gate: questions.DefaultGate()},
	)
	return svc, pub
}
