package random

import (
	crand "crypto/rand"
	"math/rand/v2"
)

var (
	// Deterministic source for tests. Not safe for concurrent use.
	PseudoRand = rand.New(rand.NewPCG(0xFF_FF_FF_FF, 0xAA_BB_CC_DD))
)

// CryptoRand returns a fresh generator seeded from crypto/rand. License keys
// are generated from it, one generator per call.
func CryptoRand() (r *rand.Rand) {
	var seed [32]byte
	crand.Reader.Read(seed[:])
	return rand.New(rand.NewChaCha8(seed))
}
