package questions

import (
	"errors"
	"math/rand"
	"sort"
	"strings"
	"testing"

	"github.com/dmv-prep/backend/internal/models"
)

func TestGenerate_CaliforniaTestOne(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 200, "TX": 80, models.UniversalState: 40})
	gen := NewGenerator(bank, 50, 4)

	got, err := gen.Generate(1, "CA", rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 50 {
		t.Fatalf("got %d questions, want 50", len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if q.State != "CA" && q.State != models.UniversalState {
			t.Errorf("question %s has state %s", q.ID, q.State)
		}
		if seen[q.ID] {
			t.Errorf("question %s repeated within a test", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestGenerate_SlotsAreDisjoint(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 180, models.UniversalState: 30})
	gen := NewGenerator(bank, 50, 4)
	rng := rand.New(rand.NewSource(7))

	owner := map[string]int{}
	for slot := 1; slot <= 4; slot++ {
		qs, err := gen.Generate(slot, "CA", rng)
		if err != nil {
			t.Fatalf("Generate(%d): %v", slot, err)
		}
		for _, q := range qs {
			if prev, ok := owner[q.ID]; ok {
				t.Errorf("question %s in slot %d and slot %d", q.ID, prev, slot)
			}
			owner[q.ID] = slot
		}
	}
	if len(owner) != 200 {
		t.Errorf("slots covered %d distinct questions, want 200", len(owner))
	}
}

func TestGenerate_MembershipStableOrderVaries(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 200})
	gen := NewGenerator(bank, 50, 4)

	a, _ := gen.Generate(2, "CA", rand.New(rand.NewSource(1)))
	b, _ := gen.Generate(2, "ca", rand.New(rand.NewSource(2)))

	setA := map[string]bool{}
	for _, q := range a {
		setA[q.ID] = true
	}
	sameOrder := true
	for i, q := range b {
		if !setA[q.ID] {
			t.Errorf("question %s not in first draw of slot 2", q.ID)
		}
		if a[i].ID != q.ID {
			sameOrder = false
		}
	}
	if sameOrder {
		t.Error("expected order to differ between generation calls")
	}
}

func TestGenerate_SmallPoolRoundRobin(t *testing.T) {
	bank := makeBank(t, map[string]int{"NV": 70})
	gen := NewGenerator(bank, 50, 4)
	rng := rand.New(rand.NewSource(3))

	for slot := 1; slot <= 4; slot++ {
		qs, err := gen.Generate(slot, "NV", rng)
		if err != nil {
			t.Fatalf("Generate(%d): %v", slot, err)
		}
		if len(qs) != 50 {
			t.Errorf("slot %d: got %d questions, want 50", slot, len(qs))
		}
		seen := map[string]bool{}
		for _, q := range qs {
			if seen[q.ID] {
				t.Errorf("slot %d repeats %s", slot, q.ID)
			}
			seen[q.ID] = true
		}
	}

	// A pool smaller than one test gives every slot the whole pool.
	tiny := NewGenerator(makeBank(t, map[string]int{"RI": 12}), 50, 4)
	qs, err := tiny.Generate(3, "RI", rng)
	if err != nil {
		t.Fatalf("Generate tiny: %v", err)
	}
	if len(qs) != 12 {
		t.Errorf("tiny pool: got %d questions, want 12", len(qs))
	}
}

func TestGenerate_SmallPoolSlotsDiffer(t *testing.T) {
	bank := makeBank(t, map[string]int{"OR": 100})
	gen := NewGenerator(bank, 50, 4)
	rng := rand.New(rand.NewSource(5))

	seen := map[string]int{}
	for slot := 1; slot <= 4; slot++ {
		qs, err := gen.Generate(slot, "OR", rng)
		if err != nil {
			t.Fatalf("Generate(%d): %v", slot, err)
		}
		ids := make([]string, 0, len(qs))
		for _, q := range qs {
			ids = append(ids, q.ID)
		}
		sort.Strings(ids)
		key := strings.Join(ids, ",")
		if prev, ok := seen[key]; ok {
			t.Errorf("slot %d has the same questions as slot %d", slot, prev)
		}
		seen[key] = slot
	}
}

func TestSlotWindow(t *testing.T) {
	tests := []struct {
		pool, size, slots, slot int
		start, length          int
		overlapping            bool
	}{
		{200, 50, 4, 1, 0, 50, false},
		{200, 50, 4, 4, 150, 50, false},
		{600, 50, 12, 12, 550, 50, false},
		{70, 50, 4, 2, 17, 50, true},
		{70, 50, 4, 3, 35, 50, true},
		{100, 50, 4, 3, 50, 50, true},
		{100, 50, 4, 4, 75, 50, true},
		{12, 50, 4, 2, 3, 12, true},
		{5, 50, 4, 4, 3, 5, true},
	}

	for _, tt := range tests {
		start, length, overlapping := slotWindow(tt.pool, tt.size, tt.slots, tt.slot)
		if start != tt.start || length != tt.length || overlapping != tt.overlapping {
			t.Errorf("slotWindow(%d, %d, %d, %d) = (%d, %d, %v), want (%d, %d, %v)",
				tt.pool, tt.size, tt.slots, tt.slot, start, length, overlapping, tt.start, tt.length, tt.overlapping)
		}
	}
}

func TestGenerate_Errors(t *testing.T) {
	bank := makeBank(t, map[string]int{"CA": 10, models.UniversalState: 5})
	gen := NewGenerator(bank, 50, 4)
	rng := rand.New(rand.NewSource(1))

	if _, err := gen.Generate(0, "CA", rng); !errors.Is(err, ErrInvalidTestNumber) {
		t.Errorf("slot 0: got %v, want ErrInvalidTestNumber", err)
	}
	if _, err := gen.Generate(5, "CA", rng); !errors.Is(err, ErrInvalidTestNumber) {
		t.Errorf("slot 5: got %v, want ErrInvalidTestNumber", err)
	}
	qs, err := gen.Generate(1, "ZZ", rng)
	if !errors.Is(err, ErrEmptyPool) {
		t.Errorf("unknown state: got %v, want ErrEmptyPool", err)
	}
	if len(qs) != 0 {
		t.Errorf("unknown state: got %d questions, want none", len(qs))
	}

	extended := NewGenerator(bank, 50, 12)
	if _, err := extended.Generate(12, "CA", rng); err != nil {
		t.Errorf("extended track slot 12: %v", err)
	}
}
