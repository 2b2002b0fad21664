package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrHashing is returned by HashPassword when the salt cannot be generated.
// It is an internal failure and must never be surfaced to clients.
var ErrHashing = errors.New("password hashing failed")

// Argon2Params holds the argon2id cost parameters used for new hashes.
// Verification always uses the parameters encoded in the stored hash, so
// changing these values does not invalidate existing passwords.
type Argon2Params struct {
	Time      uint32 // iterations
	MemoryKiB uint32 // memory in KiB
	Threads   uint8  // parallelism
	KeyLen    uint32 // derived key length in bytes
	SaltLen   int    // random salt length in bytes
}

// DefaultArgon2Params follows the OWASP baseline for argon2id.
var DefaultArgon2Params = Argon2Params{
	Time:      1,
	MemoryKiB: 64 * 1024,
	Threads:   4,
	KeyLen:    32,
	SaltLen:   16,
}

// upper bounds accepted when parsing a stored hash; anything larger is
// treated as malformed rather than spending unbounded CPU or memory.
const (
	maxArgon2Time   = 16
	maxArgon2Memory = 1024 * 1024
	maxArgon2KeyLen = 128
)

var randRead = rand.Read

// HashPassword returns an argon2id hash of plain in PHC string format:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<key>
//
// A fresh random salt is generated on every call, so hashing the same
// plaintext twice yields two different strings.
func HashPassword(plain string, p Argon2Params) (string, error) {
	p = p.withDefaults()

	salt := make([]byte, p.SaltLen)
	if _, err := randRead(salt); err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}

	key := argon2.IDKey([]byte(plain), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.MemoryKiB, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether plain matches the stored argon2id hash.
// A malformed or unsupported hash yields false, never an error, so callers
// cannot tell a wrong password from a corrupt record.
func VerifyPassword(hash, plain string) bool {
	p, salt, key, ok := decodeArgon2Hash(hash)
	if !ok {
		return false
	}
	candidate := argon2.IDKey([]byte(plain), salt, p.Time, p.MemoryKiB, p.Threads, p.KeyLen)
	return subtle.ConstantTimeCompare(candidate, key) == 1
}

func decodeArgon2Hash(encoded string) (Argon2Params, []byte, []byte, bool) {
	var p Argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, nil, nil, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, false
	}

	var memory, time uint32
	var threads uint8
	if n, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil || n != 3 {
		return p, nil, nil, false
	}
	if time < 1 || time > maxArgon2Time || threads < 1 || memory < 8*uint32(threads) || memory > maxArgon2Memory {
		return p, nil, nil, false
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, false
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(key) == 0 || len(key) > maxArgon2KeyLen {
		return p, nil, nil, false
	}

	p = Argon2Params{Time: time, MemoryKiB: memory, Threads: threads, KeyLen: uint32(len(key)), SaltLen: len(salt)}
	return p, salt, key, true
}

func (p Argon2Params) withDefaults() Argon2Params {
	if p.Time == 0 {
		p.Time = DefaultArgon2Params.Time
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultArgon2Params.MemoryKiB
	}
	if p.Threads == 0 {
		p.Threads = DefaultArgon2Params.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultArgon2Params.KeyLen
	}
	if p.SaltLen == 0 {
		p.SaltLen = DefaultArgon2Params.SaltLen
	}
	return p
}
