package resolver

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultAlphabet is the 62-symbol code alphabet.
const DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultCodeLength yields a 62^8 code space, large enough that insert
// collisions stay rare at the service's expected cardinality.
const DefaultCodeLength = 8

// Generator produces fixed-length short codes from a fixed alphabet. It is
// pure apart from its random source. Collision handling belongs to the engine;
// the generator makes no uniqueness promise.
type Generator struct {
	alphabet string
	length   int

	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator builds a generator seeded from the wall clock.
func NewGenerator(alphabet string, length int) *Generator {
	return NewSeededGenerator(alphabet, length, time.Now().UnixNano())
}

// NewSeededGenerator builds a generator with a fixed seed. Tests use this to
// force deterministic code sequences and collisions.
func NewSeededGenerator(alphabet string, length int, seed int64) *Generator {
	alphabet = strings.TrimSpace(alphabet)
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if length <= 0 {
		length = DefaultCodeLength
	}

	return &Generator{
		alphabet: alphabet,
		length:   length,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Generate returns a new random code. Safe for concurrent use.
func (g *Generator) Generate() string {
	var b strings.Builder
	b.Grow(g.length)

	g.mu.Lock()
	for i := 0; i < g.length; i++ {
		b.WriteByte(g.alphabet[g.rng.Intn(len(g.alphabet))])
	}
	g.mu.Unlock()

	return b.String()
}

// Length reports the fixed code length this generator produces.
func (g *Generator) Length() int {
	return g.length
}
