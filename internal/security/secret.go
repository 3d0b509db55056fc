package security

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
)

const minSecretLen = 32

var ErrShortSecret = fmt.Errorf("signing secret must be at least %d bytes", minSecretLen)

// SigningKey holds the HMAC secret sealed in an encrypted enclave. It is
// created once at startup and never mutated.
type SigningKey struct {
	enclave *memguard.Enclave
}

// NewSigningKey seals secret. The caller's slice is wiped.
func NewSigningKey(secret []byte) (*SigningKey, error) {
	if len(secret) < minSecretLen {
		memguard.WipeBytes(secret)
		return nil, ErrShortSecret
	}
	return &SigningKey{enclave: memguard.NewEnclave(secret)}, nil
}

// With opens the enclave for the duration of fn.
func (k *SigningKey) With(fn func(key []byte) error) error {
	if k == nil || k.enclave == nil {
		return errors.New("signing key not initialised")
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("opening signing key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}
