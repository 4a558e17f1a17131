package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	AlgoBcrypt   = "bcrypt"
	AlgoArgon2ID = "argon2id"
)

// MaxPasswordBytes is the longest password bcrypt accepts. Inputs are capped
// at it for every algorithm so switching hashers never changes what loads.
const MaxPasswordBytes = 72

var (
	ErrEmptyPassword   = errors.New("password is empty")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Credential is a derived password hash. The zero value is empty; the only
// way to obtain a non-empty one is PasswordHasher.Derive, so a Credential
// never carries plaintext.
type Credential struct {
	hash string
}

func (c Credential) Hash() string { return c.hash }

func (c Credential) IsZero() bool { return c.hash == "" }

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024, // 64 MiB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

type HasherConfig struct {
	Algorithm  string // bcrypt | argon2id
	BcryptCost int
	Argon2     Argon2Params
}

type PasswordHasher struct {
	cfg HasherConfig
}

func NewPasswordHasher(cfg HasherConfig) *PasswordHasher {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgoBcrypt
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	def := DefaultArgon2Params()
	if cfg.Argon2.Memory == 0 {
		cfg.Argon2.Memory = def.Memory
	}
	if cfg.Argon2.Iterations == 0 {
		cfg.Argon2.Iterations = def.Iterations
	}
	if cfg.Argon2.Parallelism == 0 {
		cfg.Argon2.Parallelism = def.Parallelism
	}
	if cfg.Argon2.SaltLength == 0 {
		cfg.Argon2.SaltLength = def.SaltLength
	}
	if cfg.Argon2.KeyLength == 0 {
		cfg.Argon2.KeyLength = def.KeyLength
	}
	return &PasswordHasher{cfg: cfg}
}

// Derive salts and hashes a plaintext password with the configured algorithm.
func (h *PasswordHasher) Derive(password string) (Credential, error) {
	if password == "" {
		return Credential{}, ErrEmptyPassword
	}
	if len(password) > MaxPasswordBytes {
		return Credential{}, ErrPasswordTooLong
	}

	switch h.cfg.Algorithm {
	case AlgoBcrypt:
		b, err := bcrypt.GenerateFromPassword([]byte(password), h.cfg.BcryptCost)
		if err != nil {
			return Credential{}, fmt.Errorf("bcrypt: %w", err)
		}
		return Credential{hash: string(b)}, nil
	case AlgoArgon2ID:
		s, err := hashArgon2(password, h.cfg.Argon2)
		if err != nil {
			return Credential{}, err
		}
		return Credential{hash: s}, nil
	default:
		return Credential{}, fmt.Errorf("unknown password hasher %q", h.cfg.Algorithm)
	}
}

// Verify checks a plaintext against a stored hash of either algorithm, so
// switching PASSWORD_HASHER does not lock out existing users.
func (h *PasswordHasher) Verify(hash, password string) bool {
	return CheckPassword(hash, password)
}

func CheckPassword(hash, password string) bool {
	if strings.HasPrefix(hash, "$argon2id$") {
		return verifyArgon2(hash, password)
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func hashArgon2(password string, p Argon2Params) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func verifyArgon2(encoded, password string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}
	var p Argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(want, got) == 1
}
