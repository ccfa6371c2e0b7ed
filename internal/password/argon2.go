// Package password hashes and verifies account secrets with argon2id.
//
// Hashes are self-describing PHC strings:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>
//
// so parameters can change process-wide without invalidating stored hashes.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// ErrMalformedHash is returned by Verify when the stored hash cannot be
// parsed. It is distinct from a password mismatch.
var ErrMalformedHash = errors.New("password verification failed: malformed hash")

// Config holds the argon2id cost parameters.
type Config struct {
	MemoryKB    uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns 64 MiB memory, 3 iterations, 1 lane.
func DefaultConfig() Config {
	return Config{
		MemoryKB:    64 * 1024,
		Time:        3,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes and verifies passwords. It is safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return &Argon2{config: cfg}, nil
}

// Hash returns the PHC encoding of password under a fresh random salt.
func (a *Argon2) Hash(password string) (string, error) {
	h := phcHash{
		memory:      a.config.MemoryKB,
		time:        a.config.Time,
		parallelism: a.config.Parallelism,
		salt:        make([]byte, a.config.SaltLength),
	}
	if _, err := io.ReadFull(rand.Reader, h.salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	h.key = h.derive(password, a.config.KeyLength)
	return h.String(), nil
}

// Verify reports whether password matches encodedHash. The parameters stored
// in the hash are used, not the hasher's own.
func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	h, err := decodePHC(encodedHash)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrMalformedHash, err)
	}
	computed := h.derive(password, uint32(len(h.key)))
	return subtle.ConstantTimeCompare(computed, h.key) == 1, nil
}

// phcHash is one decoded "$argon2id$v=..$m=..,t=..,p=..$salt$key" string.
type phcHash struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (h phcHash) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.parallelism, keyLen)
}

func (h phcHash) params() string {
	return fmt.Sprintf("m=%d,t=%d,p=%d", h.memory, h.time, h.parallelism)
}

func (h phcHash) String() string {
	return strings.Join([]string{
		"",
		algorithmID,
		"v=" + strconv.Itoa(argon2.Version),
		h.params(),
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	}, "$")
}

func decodePHC(encoded string) (phcHash, error) {
	var h phcHash

	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return h, errors.New("expected 5 $-separated fields")
	}
	if fields[1] != algorithmID {
		return h, fmt.Errorf("algorithm %q is not %s", fields[1], algorithmID)
	}
	if fields[2] != "v="+strconv.Itoa(argon2.Version) {
		return h, fmt.Errorf("unsupported version field %q", fields[2])
	}

	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.parallelism); err != nil {
		return h, fmt.Errorf("parameters %q: %w", fields[3], err)
	}
	// Reject trailing or reordered parameters that Sscanf would tolerate.
	if h.params() != fields[3] || h.memory == 0 || h.time == 0 || h.parallelism == 0 {
		return h, fmt.Errorf("parameters %q are not canonical", fields[3])
	}

	var err error
	if h.salt, err = unbase64(fields[4]); err != nil {
		return h, fmt.Errorf("salt: %w", err)
	}
	if h.key, err = unbase64(fields[5]); err != nil {
		return h, fmt.Errorf("key: %w", err)
	}
	return h, nil
}

// unbase64 accepts padded and unpadded standard base64, as written by other
// argon2 libraries. Empty input is an error.
func unbase64(s string) ([]byte, error) {
	enc := base64.RawStdEncoding
	if strings.HasSuffix(s, "=") {
		enc = base64.StdEncoding
	}
	b, err := enc.DecodeString(s)
	if err == nil && len(b) == 0 {
		err = errors.New("empty")
	}
	return b, err
}

func validateConfig(cfg Config) error {
	for _, rule := range []struct {
		ok   bool
		name string
		min  uint32
	}{
		{cfg.MemoryKB >= minMemoryKB, "memory (KB)", minMemoryKB},
		{cfg.Time >= minTimeCost, "time", minTimeCost},
		{cfg.Parallelism >= minParallelism, "parallelism", uint32(minParallelism)},
		{cfg.SaltLength >= minSaltLength, "salt length", minSaltLength},
		{cfg.KeyLength >= minKeyLength, "key length", minKeyLength},
	} {
		if !rule.ok {
			return fmt.Errorf("argon2 %s must be at least %d", rule.name, rule.min)
		}
	}
	return nil
}
