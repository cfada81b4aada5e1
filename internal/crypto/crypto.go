// Package crypto implements the key derivation and authenticated encryption
// layer: Argon2id for turning a passphrase into a symmetric key, and
// XChaCha20-Poly1305 for sealing the secret.
package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the derived key size in bytes (256 bits).
	KeySize = 32
	// SaltSize is the Argon2id salt size in bytes.
	SaltSize = 16
	// NonceSize is the XChaCha20-Poly1305 nonce size in bytes (192 bits).
	NonceSize = chacha20poly1305.NonceSizeX
	// TagSize is the Poly1305 authentication tag size in bytes.
	TagSize = chacha20poly1305.Overhead
)

// ErrAuthentication is returned when decryption fails. A wrong passphrase and
// a tampered ciphertext are deliberately indistinguishable.
var ErrAuthentication = errors.New("authentication failed: wrong passphrase or corrupted data")

// ValidationError reports invalid key derivation parameters.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Params holds Argon2id cost parameters. It is an immutable value passed
// explicitly into each call; the package keeps no process-wide tunables.
type Params struct {
	// Time is the number of passes over memory.
	Time uint32
	// MemoryKiB is the memory footprint in KiB.
	MemoryKiB uint32
	// Threads is the degree of lane parallelism.
	Threads uint8
}

// DefaultParams returns the standard cost parameters: 3 passes over 64 MiB
// with 4 lanes, roughly 100ms on current hardware.
func DefaultParams() Params {
	return Params{
		Time:      3,
		MemoryKiB: 64 * 1024,
		Threads:   4,
	}
}

// Validate checks the parameters before any derivation work begins.
func (p Params) Validate() error {
	if p.Time == 0 {
		return &ValidationError{Field: "time cost", Reason: "must be at least 1"}
	}
	if p.Threads == 0 {
		return &ValidationError{Field: "parallelism", Reason: "must be at least 1"}
	}
	// Argon2 requires 8 KiB per lane.
	if p.MemoryKiB < 8*uint32(p.Threads) {
		return &ValidationError{
			Field:  "memory cost",
			Reason: fmt.Sprintf("must be at least %d KiB for %d lanes", 8*uint32(p.Threads), p.Threads),
		}
	}
	return nil
}

// DeriveKey derives a 32-byte key from the passphrase and salt using
// Argon2id. Identical inputs always produce the identical key.
//
// The returned key is ephemeral: callers must not persist it.
func DeriveKey(passphrase string, salt []byte, params Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(salt) != SaltSize {
		return nil, &ValidationError{
			Field:  "salt",
			Reason: fmt.Sprintf("must be exactly %d bytes, got %d", SaltSize, len(salt)),
		}
	}
	key := argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Threads, KeySize)
	return key, nil
}

// GenerateSalt returns a fresh random 16-byte salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("salt generation failed: %w", err)
	}
	return salt, nil
}

// GenerateNonce returns a fresh random 24-byte nonce. The extended nonce size
// makes random generation per call safe without birthday-bound concerns.
func GenerateNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}
	return nonce, nil
}

// Encrypt seals plaintext with XChaCha20-Poly1305. The returned ciphertext is
// len(plaintext)+16 bytes, the final 16 being the Poly1305 tag.
func Encrypt(plaintext, key, nonce []byte) ([]byte, error) {
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext, verifying the tag before returning any plaintext.
// Any mismatch fails closed with ErrAuthentication; no partial plaintext is
// ever exposed.
func Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	if len(ciphertext) < TagSize {
		return nil, &ValidationError{
			Field:  "ciphertext",
			Reason: fmt.Sprintf("must be at least %d bytes, got %d", TagSize, len(ciphertext)),
		}
	}
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

func newAEAD(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, &ValidationError{
			Field:  "key",
			Reason: fmt.Sprintf("must be exactly %d bytes, got %d", KeySize, len(key)),
		}
	}
	if len(nonce) != NonceSize {
		return nil, &ValidationError{
			Field:  "nonce",
			Reason: fmt.Sprintf("must be exactly %d bytes, got %d", NonceSize, len(nonce)),
		}
	}
	return chacha20poly1305.NewX(key)
}

// Zero overwrites b, used to scrub derived keys once an operation completes.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
