// Package auth: password hashing utilities.
//
// ARGON2ID:
// A memory-hard key derivation function. Every guess costs the same time AND
// the same RAM as a real login. Fast hashes (MD5, SHA-256) must never be used
// here.
//
// Unlike bcrypt, argon2 does not embed the salt in its output, so each user
// row carries two columns:
//
//	salt          → 16 random bytes, hex encoded (32 chars)
//	password_hash → argon2id(password, salt), hex encoded (64 chars)
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	saltBytes = 16
	keyBytes  = 32

	// Defaults follow the RFC 9106 "second recommended" profile.
	defaultTime    = 1
	defaultMemory  = 64 * 1024 // KiB → 64 MiB
	defaultThreads = 4
)

// Params controls the argon2id work factor.
type Params struct {
	Time    uint32 // iterations
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams returns the production work factor.
func DefaultParams() Params {
	return Params{Time: defaultTime, Memory: defaultMemory, Threads: defaultThreads}
}

// PasswordService generates salts and derives/verifies password hashes.
// The work factor is injected; tests use a few KiB of memory instead of 64 MiB.
type PasswordService struct {
	params Params
}

// NewPasswordService creates a PasswordService with the default parameters.
func NewPasswordService() *PasswordService {
	return &PasswordService{params: DefaultParams()}
}

// NewPasswordServiceWithParams creates a PasswordService with a custom work
// factor. Zero fields fall back to the defaults.
func NewPasswordServiceWithParams(p Params) *PasswordService {
	d := DefaultParams()
	if p.Time == 0 {
		p.Time = d.Time
	}
	if p.Memory == 0 {
		p.Memory = d.Memory
	}
	if p.Threads == 0 {
		p.Threads = d.Threads
	}
	return &PasswordService{params: p}
}

// NewPasswordServiceForTest creates a PasswordService with the minimum work
// factor. Use this in tests in other packages.
//
// Do NOT use in production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{params: Params{Time: 1, Memory: 8, Threads: 1}}
}

// NewSalt returns 16 bytes of crypto/rand output, hex encoded.
func (p *PasswordService) NewSalt() (string, error) {
	b := make([]byte, saltBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Hash derives the hex-encoded argon2id key for plaintext under salt.
// The same (plaintext, salt) pair always yields the same hash.
func (p *PasswordService) Hash(plaintext, salt string) (string, error) {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return "", fmt.Errorf("auth: decoding salt: %w", err)
	}
	key := argon2.IDKey([]byte(plaintext), rawSalt, p.params.Time, p.params.Memory, p.params.Threads, keyBytes)
	return hex.EncodeToString(key), nil
}

// Verify recomputes the hash of plaintext under salt and compares it with
// the stored hash in constant time.
//
// Returns nil if they match, a non-nil error if they don't.
func (p *PasswordService) Verify(hash, salt, plaintext string) error {
	computed, err := p.Hash(plaintext, salt)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) != 1 {
		return fmt.Errorf("auth: invalid password")
	}
	return nil
}

// dummySalt is hashed against when a username does not exist, so that an
// unknown user costs the same as a wrong password.
const dummySalt = "00000000000000000000000000000000"

// Burn performs one throwaway hash computation.
func (p *PasswordService) Burn(plaintext string) {
	_, _ = p.Hash(plaintext, dummySalt)
}
