package stego

import (
	"bytes"
	"fmt"
	"image/jpeg"

	"lukechampine.com/jsteg"
)

// jpegOptions fixes the re-encode quality used by both the capacity pass and
// the embed pass. The two must agree: capacity is content-dependent and only
// meaningful for the exact coefficient stream the embed will produce.
var jpegOptions = &jpeg.Options{Quality: 85}

// capacityJPEG counts the usable coefficients with a real pass over every
// 8x8 block: only AC coefficients with magnitude strictly greater than 1 can
// carry a bit, since a parity adjustment elsewhere could zero the value or
// flip its sign and lose the bit irrecoverably. One bit per eligible
// coefficient, eight bits per byte.
func capacityJPEG(carrier []byte) (int, error) {
	img, err := jpeg.Decode(bytes.NewReader(carrier))
	if err != nil {
		return 0, &FormatError{Detail: fmt.Sprintf("corrupt JPEG: %v", err)}
	}
	return jsteg.Capacity(img, jpegOptions), nil
}

// embedJPEG writes payload bits into coefficient parity in the fixed
// block-scan order. The container stays a baseline JPEG of identical
// dimensions; a recompression or resize afterwards invalidates the payload.
func embedJPEG(carrier, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return carrier, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(carrier))
	if err != nil {
		return nil, &FormatError{Detail: fmt.Sprintf("corrupt JPEG: %v", err)}
	}
	capacity := jsteg.Capacity(img, jpegOptions)
	if len(payload) > capacity {
		return nil, &CapacityError{Required: len(payload), Available: capacity}
	}

	var buf bytes.Buffer
	if err := jsteg.Hide(&buf, img, payload, jpegOptions); err != nil {
		return nil, fmt.Errorf("embedding into JPEG coefficients: %w", err)
	}
	return buf.Bytes(), nil
}

// extractJPEG mirrors the embed traversal, reading parity at each eligible
// coefficient, and truncates the recovered stream to the requested size.
func extractJPEG(carrier []byte, payloadSize int) ([]byte, error) {
	data, err := jsteg.Reveal(bytes.NewReader(carrier))
	if err != nil {
		return nil, &FormatError{Detail: fmt.Sprintf("corrupt JPEG: %v", err)}
	}
	if payloadSize > len(data) {
		return nil, &CapacityError{Required: payloadSize, Available: len(data)}
	}
	return data[:payloadSize], nil
}
