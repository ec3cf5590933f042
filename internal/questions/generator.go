package questions

import (
	"errors"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"strings"

	"github.com/dmv-prep/backend/internal/models"
)

var (
	ErrEmptyPool         = errors.New("no questions available")
	ErrInvalidTestNumber = errors.New("invalid test number")
)

const (
	DefaultTestSize = 50
	StandardSlots   = 4
	MaxSlots        = 12
)

// Generator carves a state's pool into numbered practice tests.
type Generator struct {
	bank     *Bank
	testSize int
	slots    int
}

func NewGenerator(bank *Bank, testSize, slots int) *Generator {
	if testSize <= 0 {
		testSize = DefaultTestSize
	}
	if slots <= 0 {
		slots = StandardSlots
	}
	if slots > MaxSlots {
		slots = MaxSlots
	}
	return &Generator{bank: bank, testSize: testSize, slots: slots}
}

func (g *Generator) Slots() int    { return g.slots }
func (g *Generator) TestSize() int { return g.testSize }

// Generate returns the questions for one test slot in a fresh random order.
//
// The pool is arranged by a permutation seeded from the state code, so slot
// membership is stable across calls. While the pool holds at least
// slots*testSize questions every slot gets a disjoint chunk. Smaller pools
// fall back to round-robin windows over the same permutation: slot k starts
// at (k-1)*len(pool)/slots and wraps, so the starts are spread evenly over
// the pool. Windows may repeat questions across slots but never within one
// test.
func (g *Generator) Generate(testNumber int, state string, rng *rand.Rand) ([]models.Question, error) {
	if testNumber < 1 || testNumber > g.slots {
		return nil, fmt.Errorf("%w: %d (supported 1-%d)", ErrInvalidTestNumber, testNumber, g.slots)
	}

	state = strings.ToUpper(state)
	pool := g.bank.Pool(state)
	if len(pool) == 0 {
		return nil, fmt.Errorf("%w for state %q", ErrEmptyPool, state)
	}

	start, length, overlapping := slotWindow(len(pool), g.testSize, g.slots, testNumber)
	if overlapping {
		log.Printf("[generator] state=%s pool=%d < %d slots x %d; test %d uses round-robin window at %d",
			state, len(pool), g.slots, g.testSize, testNumber, start)
	}

	order := statePermutation(state, len(pool))
	out := make([]models.Question, 0, length)
	for i := 0; i < length; i++ {
		out = append(out, pool[order[(start+i)%len(pool)]])
	}

	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

// slotWindow returns where a slot's questions begin in the state permutation,
// how many it takes, and whether the window may overlap other slots.
func slotWindow(poolSize, testSize, slots, testNumber int) (start, length int, overlapping bool) {
	if poolSize >= slots*testSize {
		return (testNumber - 1) * testSize, testSize, false
	}
	length = testSize
	if poolSize < length {
		length = poolSize
	}
	return (testNumber - 1) * poolSize / slots, length, true
}

// statePermutation is a permutation of [0,n) that depends only on state and n.
func statePermutation(state string, n int) []int {
	h := fnv.New64a()
	h.Write([]byte(state))
	return rand.New(rand.NewSource(int64(h.Sum64()))).Perm(n)
}
