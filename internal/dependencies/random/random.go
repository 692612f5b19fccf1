package random

import "crypto/rand"

// Random provides random byte generation that can be mocked for testing.
// Tokens and nonces both come from here, so tests can make issuance
// deterministic.
type Random interface {
	// Bytes returns n cryptographically random bytes
	Bytes(n int) ([]byte, error)
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// Bytes returns n cryptographically random bytes
func (r *CryptoRandom) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
