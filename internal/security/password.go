package security

import (
	"bytes"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the lowest work factor accepted for new hashes.
const MinBcryptCost = 10

var (
	ErrEmptyPassword   = errors.New("password is empty")
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

type Argon2Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

var DefaultArgon2Params = Argon2Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 2,
	KeyLen:  32,
	SaltLen: 16,
}

const argon2Prefix = "$argon2id$"

// PasswordHasher hashes new passwords with one algorithm and verifies stored
// hashes of either supported format.
type PasswordHasher struct {
	algorithm  string
	bcryptCost int
	argon      Argon2Params
}

// NewBcryptHasher returns a hasher producing bcrypt hashes. Costs below
// MinBcryptCost are raised to it.
func NewBcryptHasher(cost int) *PasswordHasher {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	return &PasswordHasher{algorithm: "bcrypt", bcryptCost: cost, argon: DefaultArgon2Params}
}

func NewArgon2Hasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{algorithm: "argon2id", bcryptCost: bcrypt.DefaultCost + 2, argon: params}
}

func (h *PasswordHasher) Algorithm() string { return h.algorithm }

func (h *PasswordHasher) Hash(password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if h.algorithm == "argon2id" {
		return hashArgon2(password, h.argon)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fmt.Errorf("%w: at most %d bytes allowed", ErrWeakPassword, MaxPasswordBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	return hash, nil
}

// Verify reports whether password matches the stored hash. A mismatch is
// (false, nil); an error means the stored hash itself is unusable.
func (h *PasswordHasher) Verify(password string, stored []byte) (bool, error) {
	switch {
	case bytes.HasPrefix(stored, []byte(argon2Prefix)):
		return verifyArgon2(password, stored)
	case bytes.HasPrefix(stored, []byte("$2")):
		err := bcrypt.CompareHashAndPassword(stored, []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("bcrypt: %w", err)
		}
		return true, nil
	default:
		return false, ErrUnsupportedHash
	}
}

func hashArgon2(password string, params Argon2Params) ([]byte, error) {
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, params.KeyLen)

	result := fmt.Sprintf("%sv=%d$t=%d,m=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, params.Time, params.Memory, params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	return []byte(result), nil
}

func verifyArgon2(password string, encoded []byte) (bool, error) {
	// $argon2id$v=19$t=3,m=65536,p=2$<salt>$<hash>
	parts := strings.Split(string(encoded), "$")
	if len(parts) != 6 {
		return false, fmt.Errorf("%w: malformed argon2id hash", ErrUnsupportedHash)
	}

	var (
		version int
		params  Argon2Params
	)
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("parse version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "t=%d,m=%d,p=%d", &params.Time, &params.Memory, &params.Threads); err != nil {
		return false, fmt.Errorf("parse params: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, params.Time, params.Memory, params.Threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, computed) == 1, nil
}
