package stego

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
)

// usableChannels is the number of channels per pixel that carry payload
// bits. The alpha channel is skipped so transparency is preserved exactly.
const usableChannels = 3

// capacityPNG computes floor(width*height*3/8) from the decoded dimensions.
func capacityPNG(carrier []byte) (int, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(carrier))
	if err != nil {
		return 0, &FormatError{Detail: fmt.Sprintf("corrupt PNG: %v", err)}
	}
	return cfg.Width * cfg.Height * usableChannels / 8, nil
}

// embedPNG overwrites the least-significant bit of successive R, G, B channel
// values in row-major pixel order with payload bits, most significant bit of
// each payload byte first. Pixels past the last payload bit are untouched.
func embedPNG(carrier, payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return carrier, nil
	}

	img, err := decodePNG(carrier)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	capacity := bounds.Dx() * bounds.Dy() * usableChannels / 8
	if len(payload) > capacity {
		return nil, &CapacityError{Required: len(payload), Available: capacity}
	}

	bitIdx := 0
	total := len(payload) * 8
writeLoop:
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			off := img.PixOffset(x, y)
			for c := 0; c < usableChannels; c++ {
				if bitIdx == total {
					break writeLoop
				}
				bit := (payload[bitIdx/8] >> (7 - bitIdx%8)) & 1
				img.Pix[off+c] = img.Pix[off+c]&0xfe | bit
				bitIdx++
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding stego PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// extractPNG reads the same fixed LSB sequence and reassembles bytes
// most-significant-bit-first.
func extractPNG(carrier []byte, payloadSize int) ([]byte, error) {
	img, err := decodePNG(carrier)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	capacity := bounds.Dx() * bounds.Dy() * usableChannels / 8
	if payloadSize > capacity {
		return nil, &CapacityError{Required: payloadSize, Available: capacity}
	}

	payload := make([]byte, payloadSize)
	bitIdx := 0
	total := payloadSize * 8
readLoop:
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			off := img.PixOffset(x, y)
			for c := 0; c < usableChannels; c++ {
				if bitIdx == total {
					break readLoop
				}
				payload[bitIdx/8] |= (img.Pix[off+c] & 1) << (7 - bitIdx%8)
				bitIdx++
			}
		}
	}
	return payload, nil
}

// decodePNG decodes a PNG carrier into non-premultiplied RGBA so channel
// values survive the round trip bit-exactly regardless of the source color
// model.
func decodePNG(carrier []byte) (*image.NRGBA, error) {
	src, err := png.Decode(bytes.NewReader(carrier))
	if err != nil {
		return nil, &FormatError{Detail: fmt.Sprintf("corrupt PNG: %v", err)}
	}
	if nrgba, ok := src.(*image.NRGBA); ok {
		return nrgba, nil
	}
	bounds := src.Bounds()
	nrgba := image.NewNRGBA(bounds)
	draw.Draw(nrgba, bounds, src, bounds.Min, draw.Src)
	return nrgba, nil
}
