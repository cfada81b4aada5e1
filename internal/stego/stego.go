// Package stego hides payload bytes inside image carriers and recovers them.
//
// Two structurally different engines share one contract: a raster engine
// that rewrites least-significant bits of PNG pixel channels, and a
// frequency-domain engine that encodes bits in the parity of quantized JPEG
// DCT coefficients. The carrier's container format selects the engine; the
// payload framing is identical either way.
package stego

import (
	"bytes"
	"fmt"
)

// Format classifies a carrier container.
type Format int

const (
	// FormatUnsupported marks a container that is neither PNG nor JPEG.
	FormatUnsupported Format = iota
	// FormatRaster is a lossless pixel-grid carrier (PNG).
	FormatRaster
	// FormatFrequencyDomain is a block-transform carrier (JPEG).
	FormatFrequencyDomain
)

func (f Format) String() string {
	switch f {
	case FormatRaster:
		return "raster"
	case FormatFrequencyDomain:
		return "frequency-domain"
	default:
		return "unsupported"
	}
}

// pngSignature is the 8-byte PNG file signature.
var pngSignature = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}

// jpegSOI is the JPEG start-of-image marker.
var jpegSOI = []byte{0xff, 0xd8}

// FormatError reports a carrier whose container is not recognized.
type FormatError struct {
	Detail string
}

func (e *FormatError) Error() string {
	return "unsupported carrier format: " + e.Detail
}

// CapacityError reports a payload that exceeds what the carrier can hold.
type CapacityError struct {
	Required  int
	Available int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds carrier capacity of %d bytes", e.Required, e.Available)
}

// Detect classifies a carrier by its leading signature bytes. This is the
// container's own magic, distinct from the payload's internal magic.
func Detect(carrier []byte) (Format, error) {
	if len(carrier) >= len(pngSignature) && bytes.Equal(carrier[:len(pngSignature)], pngSignature) {
		return FormatRaster, nil
	}
	if len(carrier) >= len(jpegSOI) && bytes.Equal(carrier[:len(jpegSOI)], jpegSOI) {
		return FormatFrequencyDomain, nil
	}
	return FormatUnsupported, &FormatError{Detail: "not a PNG or JPEG image"}
}

// Capacity returns the maximum payload size in bytes the carrier can hold.
// For raster carriers this is a closed-form function of the dimensions; for
// frequency-domain carriers it is content-dependent and computed by an
// actual coefficient pass.
func Capacity(carrier []byte) (int, error) {
	format, err := Detect(carrier)
	if err != nil {
		return 0, err
	}
	switch format {
	case FormatRaster:
		return capacityPNG(carrier)
	default:
		return capacityJPEG(carrier)
	}
}

// Embed writes the payload into a copy of the carrier and returns it in the
// same container format. It is all-or-nothing: on any failure the carrier is
// untouched and no partial output is produced. A zero-length payload returns
// the carrier unchanged.
func Embed(carrier, payload []byte) ([]byte, error) {
	format, err := Detect(carrier)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatRaster:
		return embedPNG(carrier, payload)
	default:
		return embedJPEG(carrier, payload)
	}
}

// Extract reads payloadSize bytes back out of the carrier. Extraction is
// bit-for-bit deterministic: the same unmodified carrier always yields an
// identical result.
func Extract(carrier []byte, payloadSize int) ([]byte, error) {
	format, err := Detect(carrier)
	if err != nil {
		return nil, err
	}
	if payloadSize < 0 {
		return nil, fmt.Errorf("payload size must be non-negative, got %d", payloadSize)
	}
	switch format {
	case FormatRaster:
		return extractPNG(carrier, payloadSize)
	default:
		return extractJPEG(carrier, payloadSize)
	}
}
