// Package stegvault backs up encrypted secrets inside ordinary images.
//
// A secret is sealed with a passphrase-derived key (Argon2id +
// XChaCha20-Poly1305), framed into a byte-exact payload, and written into a
// PNG or JPEG carrier; restore is the exact mirror. Every operation is a
// stateless pure function over its inputs, safe for concurrent use across
// independent carriers.
package stegvault

import (
	"github.com/stegvault/stegvault/internal/crypto"
	"github.com/stegvault/stegvault/internal/payload"
	"github.com/stegvault/stegvault/internal/stego"
)

// Params re-exports the Argon2id cost parameters so callers outside the
// module can tune derivation without importing internal packages.
type Params = crypto.Params

// DefaultParams returns the standard Argon2id cost parameters.
func DefaultParams() Params {
	return crypto.DefaultParams()
}

// Format re-exports the carrier classification.
type Format = stego.Format

const (
	FormatRaster          = stego.FormatRaster
	FormatFrequencyDomain = stego.FormatFrequencyDomain
	FormatUnsupported     = stego.FormatUnsupported
)

// EncryptToPayload seals a secret under a passphrase and returns the
// serialized payload frame ready for embedding. Each call draws a fresh salt
// and nonce; the derived key never leaves this function.
func EncryptToPayload(secret []byte, passphrase string, params Params) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	nonce, err := crypto.GenerateNonce()
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveKey(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)

	ciphertext, err := crypto.Encrypt(secret, key, nonce)
	if err != nil {
		return nil, err
	}
	return payload.Serialize(salt, nonce, ciphertext)
}

// DecryptFromPayload parses a payload frame and recovers the secret. A bad
// frame, a wrong passphrase, and a tampered ciphertext all fail closed with
// no partial plaintext; the latter two are indistinguishable.
func DecryptFromPayload(frame []byte, passphrase string, params Params) ([]byte, error) {
	salt, nonce, ciphertext, err := payload.Parse(frame)
	if err != nil {
		return nil, err
	}
	key, err := crypto.DeriveKey(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	defer crypto.Zero(key)

	return crypto.Decrypt(ciphertext, key, nonce)
}

// Embed writes a payload into the carrier, returning a new image in the same
// container format. No carrier bytes are mutated on any failure path.
func Embed(carrier, frame []byte) ([]byte, error) {
	return stego.Embed(carrier, frame)
}

// Extract reads payloadSize bytes back out of a stego carrier.
func Extract(carrier []byte, payloadSize int) ([]byte, error) {
	return stego.Extract(carrier, payloadSize)
}

// ExtractPayload recovers a complete payload frame from a stego carrier
// without a size hint: it reads the fixed 48-byte header first, validates it,
// then reads the full frame at the length the header declares.
func ExtractPayload(carrier []byte) ([]byte, error) {
	header, err := stego.Extract(carrier, payload.HeaderSize)
	if err != nil {
		return nil, err
	}
	total, err := payload.DeclaredSize(header)
	if err != nil {
		return nil, err
	}
	return stego.Extract(carrier, total)
}

// Capacity returns the maximum payload size in bytes the carrier can hold.
func Capacity(carrier []byte) (int, error) {
	return stego.Capacity(carrier)
}

// MaxSecretSize returns the largest secret that fits in the carrier once
// framing and AEAD overhead are accounted for.
func MaxSecretSize(carrier []byte) (int, error) {
	capacity, err := stego.Capacity(carrier)
	if err != nil {
		return 0, err
	}
	return payload.MaxSecretSize(capacity), nil
}

// DetectFormat classifies a carrier by its container signature.
func DetectFormat(carrier []byte) (Format, error) {
	return stego.Detect(carrier)
}

// Backup is the full pipeline: seal the secret, check capacity, embed. The
// capacity check runs before any output is produced, so an oversized secret
// leaves the carrier untouched.
func Backup(carrier, secret []byte, passphrase string, params Params) ([]byte, error) {
	frame, err := EncryptToPayload(secret, passphrase, params)
	if err != nil {
		return nil, err
	}
	capacity, err := stego.Capacity(carrier)
	if err != nil {
		return nil, err
	}
	if len(frame) > capacity {
		return nil, &stego.CapacityError{Required: len(frame), Available: capacity}
	}
	return stego.Embed(carrier, frame)
}

// Restore is the mirror pipeline: extract the frame, parse it, decrypt.
func Restore(carrier []byte, passphrase string, params Params) ([]byte, error) {
	frame, err := ExtractPayload(carrier)
	if err != nil {
		return nil, err
	}
	return DecryptFromPayload(frame, passphrase, params)
}
