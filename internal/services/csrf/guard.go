package csrf

import (
	"crypto/subtle"
	"encoding/base64"

	"github.com/membergate/membergate/internal/dependencies/random"
	"github.com/membergate/membergate/internal/model"
)

// TokenSize is the raw entropy of a CSRF token in bytes.
const TokenSize = 32

// Guard issues and verifies double-submit CSRF tokens. The token is
// delivered in its own cookie, separate from the session cookie, set once
// per browser; mutating requests must echo it back so the two copies can be
// compared.
type Guard struct {
	random random.Random
}

// New creates a new CSRF Guard
func New(rnd random.Random) *Guard {
	return &Guard{random: rnd}
}

// Issue generates a fresh CSRF token.
func (g *Guard) Issue() (string, error) {
	b, err := g.random.Bytes(TokenSize)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Verify checks the token presented with a request against the cookie copy.
// Both must be present and equal; the comparison is constant-time. Any
// failure reports model.ErrUnauthorized.
func (g *Guard) Verify(presented, cookie string) error {
	if presented == "" || cookie == "" {
		return model.ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(cookie)) != 1 {
		return model.ErrUnauthorized
	}
	return nil
}
