package heuristic

import (
	"math"
	"math/rand/v2"
	"sync"
)

const (
	pointsPerTactic = 15
	jitterSpan      = 10
	minRisk         = 5
	maxRisk         = 99

	// threatThreshold is the number of distinct tactics that makes a message a threat
	threatThreshold = 2
)

// JitterSource yields values uniformly distributed in [0, 1)
type JitterSource interface {
	Float64() float64
}

// Scorer turns a tactic count into a risk score
type Scorer struct {
	src JitterSource
}

// NewScorer returns a scorer drawing jitter from src. A nil src disables jitter.
func NewScorer(src JitterSource) *Scorer {
	return &Scorer{src: src}
}

// NewSeededScorer returns a scorer with reproducible jitter
func NewSeededScorer(seed uint64) *Scorer {
	return NewScorer(&lockedRand{r: rand.New(rand.NewPCG(seed, seed))})
}

// NewRandomScorer returns a scorer using the process-wide random source
func NewRandomScorer() *Scorer {
	return NewScorer(globalRand{})
}

// Score computes round(clamp(n*15 + jitter, 5, 99))
func (s *Scorer) Score(n int) int {
	v := float64(n * pointsPerTactic)
	if s != nil && s.src != nil {
		v += s.src.Float64() * jitterSpan
	}
	v = math.Max(minRisk, math.Min(maxRisk, v))
	return int(math.Round(v))
}

// IsThreat reports whether n tactics are enough to flag a message
func IsThreat(n int) bool {
	return n >= threatThreshold
}

// lockedRand makes a *rand.Rand safe for concurrent use
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
