package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/99minutos/accounts/internal/core/domain"
)

const argon2Prefix = "argon2id"

// Argon2Params tunes the argon2id key derivation.
type Argon2Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
var DefaultArgon2Params = Argon2Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// Argon2Hasher hashes passwords with argon2id and a random per-hash salt.
// Encoded form: argon2id$<time>$<memory>$<threads>$<keylen>$<salt>$<hash>.
type Argon2Hasher struct {
	params Argon2Params
}

func NewArgon2Hasher(params Argon2Params) *Argon2Hasher {
	if params.Time == 0 || params.Memory == 0 || params.Threads == 0 || params.KeyLen == 0 || params.SaltLen == 0 {
		params = DefaultArgon2Params
	}
	return &Argon2Hasher{params: params}
}

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}

	p := h.params
	key := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)

	return fmt.Sprintf("%s$%d$%d$%d$%d$%s$%s",
		argon2Prefix, p.Time, p.Memory, p.Threads, p.KeyLen,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

func (h *Argon2Hasher) Compare(hash, password string) bool {
	p, salt, want, err := decodeArgon2(hash)
	if err != nil {
		return false
	}
	got := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func decodeArgon2(encoded string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 7 || parts[0] != argon2Prefix {
		return Argon2Params{}, nil, nil, domain.ErrInvalidHash
	}

	var p Argon2Params
	if _, err := fmt.Sscanf(strings.Join(parts[1:5], " "), "%d %d %d %d", &p.Time, &p.Memory, &p.Threads, &p.KeyLen); err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: %v", domain.ErrInvalidHash, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: salt: %v", domain.ErrInvalidHash, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[6])
	if err != nil {
		return Argon2Params{}, nil, nil, fmt.Errorf("%w: key: %v", domain.ErrInvalidHash, err)
	}
	if uint32(len(key)) != p.KeyLen {
		return Argon2Params{}, nil, nil, domain.ErrInvalidHash
	}
	p.SaltLen = uint32(len(salt))
	return p, salt, key, nil
}
