// Package payload implements the fixed binary frame that carries an
// encrypted secret inside an image:
//
//	offset  size  field
//	0       4B    magic ("SPW1", format + version)
//	4       16B   salt
//	20      24B   nonce
//	44      4B    ciphertext length N, big-endian
//	48      N     ciphertext (final 16 bytes are the AEAD tag)
package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// MagicSize is the size of the magic header in bytes.
	MagicSize = 4
	// SaltSize is the size of the salt field in bytes.
	SaltSize = 16
	// NonceSize is the size of the nonce field in bytes.
	NonceSize = 24
	// LengthSize is the size of the big-endian ciphertext length field.
	LengthSize = 4
	// HeaderSize is the total fixed header size preceding the ciphertext.
	HeaderSize = MagicSize + SaltSize + NonceSize + LengthSize
	// MinCiphertextSize is the smallest valid ciphertext: a bare AEAD tag.
	MinCiphertextSize = 16
)

// Magic identifies the frame format; the trailing byte encodes the version.
var Magic = []byte("SPW1")

// magicPrefix is the version-independent part of the magic. A frame with
// this prefix but an unknown version byte is recognized-but-newer rather
// than malformed.
var magicPrefix = Magic[:3]

// FormatError reports a malformed frame: bad magic, truncated header, or a
// length field that disagrees with the actual byte count.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid payload: " + e.Reason
}

// UnsupportedVersionError reports a frame whose magic prefix is recognized
// but whose version byte is newer than this implementation understands.
type UnsupportedVersionError struct {
	Version byte
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported payload version %q (this build understands %q)", e.Version, Magic[3])
}

// Serialize builds a frame from its parts. Field sizes are validated so a
// malformed frame can never be produced.
func Serialize(salt, nonce, ciphertext []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, &FormatError{Reason: fmt.Sprintf("salt must be exactly %d bytes, got %d", SaltSize, len(salt))}
	}
	if len(nonce) != NonceSize {
		return nil, &FormatError{Reason: fmt.Sprintf("nonce must be exactly %d bytes, got %d", NonceSize, len(nonce))}
	}
	if len(ciphertext) < MinCiphertextSize {
		return nil, &FormatError{Reason: fmt.Sprintf("ciphertext too short: %d bytes, need at least %d", len(ciphertext), MinCiphertextSize)}
	}

	frame := make([]byte, 0, HeaderSize+len(ciphertext))
	frame = append(frame, Magic...)
	frame = append(frame, salt...)
	frame = append(frame, nonce...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(ciphertext)))
	frame = append(frame, ciphertext...)
	return frame, nil
}

// Parse splits a frame into salt, nonce, and ciphertext. The magic is
// validated before any other field is trusted, and the declared ciphertext
// length must equal the actual remaining byte count exactly.
func Parse(frame []byte) (salt, nonce, ciphertext []byte, err error) {
	if err := checkHeader(frame); err != nil {
		return nil, nil, nil, err
	}
	n := int(binary.BigEndian.Uint32(frame[MagicSize+SaltSize+NonceSize : HeaderSize]))
	if n < MinCiphertextSize {
		return nil, nil, nil, &FormatError{Reason: fmt.Sprintf("declared ciphertext length %d below AEAD tag size %d", n, MinCiphertextSize)}
	}
	if got := len(frame) - HeaderSize; got != n {
		return nil, nil, nil, &FormatError{Reason: fmt.Sprintf("declared ciphertext length %d but frame carries %d bytes", n, got)}
	}

	salt = frame[MagicSize : MagicSize+SaltSize]
	nonce = frame[MagicSize+SaltSize : MagicSize+SaltSize+NonceSize]
	ciphertext = frame[HeaderSize:]
	return salt, nonce, ciphertext, nil
}

// DeclaredSize reads the header of a possibly over-long buffer (at least
// HeaderSize bytes) and returns the total frame size, 48+N. It is used
// during extraction to learn how many carrier bytes to read before the full
// frame is available.
func DeclaredSize(header []byte) (int, error) {
	if err := checkHeader(header); err != nil {
		return 0, err
	}
	n := int(binary.BigEndian.Uint32(header[MagicSize+SaltSize+NonceSize : HeaderSize]))
	if n < MinCiphertextSize {
		return 0, &FormatError{Reason: fmt.Sprintf("declared ciphertext length %d below AEAD tag size %d", n, MinCiphertextSize)}
	}
	return HeaderSize + n, nil
}

// Size returns the total frame size for a ciphertext of the given length.
func Size(ciphertextLen int) int {
	return HeaderSize + ciphertextLen
}

// MaxSecretSize returns the largest secret that fits in a carrier of the
// given byte capacity, accounting for header and tag overhead.
func MaxSecretSize(capacity int) int {
	max := capacity - HeaderSize - MinCiphertextSize
	if max < 0 {
		return 0
	}
	return max
}

func checkHeader(frame []byte) error {
	if len(frame) < HeaderSize {
		return &FormatError{Reason: fmt.Sprintf("frame too short: %d bytes, need at least %d", len(frame), HeaderSize)}
	}
	if !bytes.Equal(frame[:MagicSize], Magic) {
		if bytes.Equal(frame[:len(magicPrefix)], magicPrefix) {
			return &UnsupportedVersionError{Version: frame[MagicSize-1]}
		}
		return &FormatError{Reason: fmt.Sprintf("bad magic header %x", frame[:MagicSize])}
	}
	return nil
}
