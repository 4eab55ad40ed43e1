// Package rng isolates randomness behind an injectable source so races and games can be replayed from a seed.
package rng

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// Source yields uniformly distributed floats in [0, 1)
type Source interface {
	Float64() float64
}

// Uniform draws from [lo, hi)
func Uniform(s Source, lo, hi float64) float64 {
	return lo + (hi-lo)*s.Float64()
}

// Intn draws an integer in [0, n). n must be positive.
func Intn(s Source, n int) int {
	v := int(s.Float64() * float64(n))
	if v >= n {
		return n - 1
	}
	return v
}

// Seeded is a deterministic source safe for concurrent use
type Seeded struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed int64
}

// NewSeeded creates a reproducible source
func NewSeeded(seed int64) *Seeded {
	return &Seeded{rand: rand.New(rand.NewSource(seed)), seed: seed}
}

// NewTimeSeeded creates a source seeded from the wall clock
func NewTimeSeeded() *Seeded {
	return NewSeeded(time.Now().UnixNano())
}

// Float64 returns the next draw
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

// Seed returns the seed the source was created with
func (s *Seeded) Seed() int64 {
	return s.seed
}

// HMAC is a provably fair source: every draw is HMAC-SHA256(serverSeed, clientSeed:nonce),
// so a player holding both seeds can recompute each outcome after the server seed is revealed.
type HMAC struct {
	mu         sync.Mutex
	serverSeed []byte
	clientSeed string
	nonce      int
}

// NewHMAC creates a provably fair source
func NewHMAC(serverSeed, clientSeed string) *HMAC {
	return &HMAC{serverSeed: []byte(serverSeed), clientSeed: clientSeed}
}

// Float64 returns the next draw and advances the nonce
func (h *HMAC) Float64() float64 {
	h.mu.Lock()
	nonce := h.nonce
	h.nonce++
	h.mu.Unlock()

	mac := hmac.New(sha256.New, h.serverSeed)
	mac.Write([]byte(h.clientSeed + ":" + strconv.Itoa(nonce)))
	sum := mac.Sum(nil)

	// 53 bits fill the float64 mantissa exactly
	return float64(binary.BigEndian.Uint64(sum[:8])>>11) / (1 << 53)
}

// Nonce returns the number of draws taken so far
func (h *HMAC) Nonce() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nonce
}

// Fixed replays a fixed sequence of values, cycling when exhausted. Used by tests and replays.
type Fixed struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewFixed creates a source that cycles through values
func NewFixed(values ...float64) *Fixed {
	if len(values) == 0 {
		values = []float64{0.5}
	}
	return &Fixed{values: values}
}

// Float64 returns the next value in the cycle
func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.values[f.next%len(f.values)]
	f.next++
	return v
}
