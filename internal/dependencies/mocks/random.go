package mocks

import (
	"crypto/rand"

	"github.com/membergate/membergate/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	// BytesResults is a queue of results to return from Bytes
	BytesResults [][]byte
	bytesIndex   int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Bytes returns the next queued result, falling back to real random bytes
// when the queue is empty so unscripted calls still produce unique tokens
func (r *MockRandom) Bytes(n int) ([]byte, error) {
	if r.bytesIndex >= len(r.BytesResults) {
		b := make([]byte, n)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		return b, nil
	}
	result := r.BytesResults[r.bytesIndex]
	r.bytesIndex++
	return result, nil
}

// QueueBytes adds values to the Bytes result queue
func (r *MockRandom) QueueBytes(values ...[]byte) {
	r.BytesResults = append(r.BytesResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.BytesResults = nil
	r.bytesIndex = 0
}
