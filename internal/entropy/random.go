// Package entropy provides the simulation's randomness and small numeric helpers.
// All draws come from one seeded source so a run can be replayed from its seed.
// A zero seed falls back to crypto/rand for the seed itself.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand"
)

// Source is a seeded random source. It is not safe for concurrent use; the
// engine only draws from it inside a tick.
type Source struct {
	seed int64
	rng  *mrand.Rand
}

// New creates a Source. A zero seed is replaced with a crypto-random one.
func New(seed int64) *Source {
	if seed == 0 {
		seed = CryptoSeed()
	}
	return &Source{seed: seed, rng: mrand.New(mrand.NewSource(seed))}
}

// Derive creates a Source for one stream of a seeded run, such as the
// stream resumed at a given tick. The result depends only on its inputs and
// never falls back to crypto/rand, whatever the seed and stream values.
func Derive(seed int64, stream uint64) *Source {
	z := mix64(uint64(seed)) ^ mix64(stream+0x9e3779b97f4a7c15)
	derived := int64(mix64(z) >> 1)
	if derived == 0 {
		derived = 1
	}
	return &Source{seed: derived, rng: mrand.New(mrand.NewSource(derived))}
}

// mix64 is the splitmix64 finalizer.
func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Seed returns the effective seed.
func (s *Source) Seed() int64 { return s.seed }

// Intn returns a value in [0, n). n <= 0 yields 0.
func (s *Source) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return s.rng.Intn(n)
}

// Range returns a value in [lo, hi] inclusive. Swapped bounds are tolerated.
func (s *Source) Range(lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// Float returns a value in [0, 1).
func (s *Source) Float() float64 {
	return s.rng.Float64()
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	return s.rng.Float64() < p
}

// Choice picks uniformly from items. ok is false for an empty slice.
func Choice[T any](s *Source, items []T) (v T, ok bool) {
	if len(items) == 0 {
		return v, false
	}
	return items[s.Intn(len(items))], true
}

// Weighted picks from items with probability proportional to weight(item).
// Non-positive weights never win. If every weight is non-positive the first
// item is returned.
func Weighted[T any](s *Source, items []T, weight func(T) int) (v T, ok bool) {
	if len(items) == 0 {
		return v, false
	}
	total := 0
	for _, it := range items {
		if w := weight(it); w > 0 {
			total += w
		}
	}
	if total == 0 {
		return items[0], true
	}
	roll := s.Intn(total)
	for _, it := range items {
		w := weight(it)
		if w <= 0 {
			continue
		}
		if roll < w {
			return it, true
		}
		roll -= w
	}
	return items[len(items)-1], true
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// CryptoSeed returns a non-zero seed from crypto/rand.
func CryptoSeed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		return 1
	}
	seed := int64(binary.LittleEndian.Uint64(buf[:]) >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
