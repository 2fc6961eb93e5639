package simulation

import "math/rand/v2"

// pcgStream is the fixed second PCG word; the seed alone selects the stream.
const pcgStream = 0x9e3779b97f4a7c15

// NewRand returns a caller-owned random source for seed.
// The source is not safe for concurrent use.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, pcgStream))
}

// ResolveSeed returns *seed, or a fresh random seed when seed is nil.
// Unseeded runs still record the seed they consumed.
func ResolveSeed(seed *uint64) uint64 {
	if seed != nil {
		return *seed
	}
	return rand.Uint64()
}

// SeedPtr returns a pointer to seed.
func SeedPtr(seed uint64) *uint64 {
	return &seed
}
