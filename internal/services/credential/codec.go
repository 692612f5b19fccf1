package credential

import (
	"bytes"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"math"

	"golang.org/x/crypto/sha3"

	"github.com/membergate/membergate/internal/dependencies/random"
	"github.com/membergate/membergate/internal/model"
)

// NonceSize is the length in bytes of the per-account nonce mixed into
// every fingerprint derivation.
const NonceSize = 16

// Codec derives and verifies login fingerprints.
//
// A fingerprint is the base64url-encoded SHA3-512 digest of
// len(username) || username || len(password) || password || nonce, with the
// lengths prefixed (1 byte for the username, 2 bytes big-endian for the
// password) so variable-length fields cannot collide by concatenation.
// The nonce is generated once at account creation; verification must reuse
// the stored nonce or the fingerprint will never match.
type Codec struct {
	random random.Random
}

// New creates a new credential Codec
func New(rnd random.Random) *Codec {
	return &Codec{random: rnd}
}

// Derive creates fresh credentials for a new account: a newly generated
// nonce and the fingerprint bound to it.
func (c *Codec) Derive(username, password string) (*model.Credentials, error) {
	nonce, err := c.random.Bytes(NonceSize)
	if err != nil {
		return nil, err
	}

	fingerprint, err := Fingerprint(username, password, nonce)
	if err != nil {
		return nil, err
	}

	return &model.Credentials{
		Fingerprint: fingerprint,
		Nonce:       nonce,
	}, nil
}

// Verify recomputes the fingerprint with the stored nonce and compares it
// against the stored fingerprint in constant time. Any mismatch reports
// model.ErrInvalidCredentials.
func (c *Codec) Verify(stored *model.Credentials, username, password string) error {
	fingerprint, err := Fingerprint(username, password, stored.Nonce)
	if err != nil {
		return model.ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(fingerprint), []byte(stored.Fingerprint)) != 1 {
		return model.ErrInvalidCredentials
	}
	return nil
}

// Fingerprint computes the deterministic fingerprint for the given inputs.
func Fingerprint(username, password string, nonce []byte) (string, error) {
	if len(username) > math.MaxUint8 {
		return "", model.ErrUsernameTooLong
	}
	if len(password) > math.MaxUint16 {
		return "", model.ErrPasswordTooLong
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(len(username)))
	buf.WriteString(username)

	var passwordLen [2]byte
	binary.BigEndian.PutUint16(passwordLen[:], uint16(len(password)))
	buf.Write(passwordLen[:])
	buf.WriteString(password)

	buf.Write(nonce)

	digest := sha3.Sum512(buf.Bytes())
	return base64.URLEncoding.EncodeToString(digest[:]), nil
}
