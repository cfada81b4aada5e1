package stegvault

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stegvault/stegvault/internal/crypto"
	"github.com/stegvault/stegvault/internal/payload"
	"github.com/stegvault/stegvault/internal/stego"
)

// fastParams keeps Argon2id cheap enough for unit tests while staying valid.
var fastParams = Params{Time: 1, MemoryKiB: 1024, Threads: 1}

func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 7), G: uint8(y * 13), B: uint8((x + y) * 3), A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test PNG: %v", err)
	}
	return buf.Bytes()
}

func makeJPEG(t *testing.T, width, height, quality int) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(rng.Intn(256)), G: uint8(rng.Intn(256)), B: uint8(rng.Intn(256)), A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		t.Fatalf("encoding test JPEG: %v", err)
	}
	return buf.Bytes()
}

func TestPayloadRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		secret []byte
	}{
		{name: "empty", secret: []byte{}},
		{name: "short", secret: []byte("hunter2")},
		{name: "binary", secret: []byte{0, 1, 2, 0xff, 0xfe}},
		{name: "long", secret: bytes.Repeat([]byte("backup "), 512)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := EncryptToPayload(tt.secret, "Correct-Horse-42!", fastParams)
			if err != nil {
				t.Fatalf("EncryptToPayload() error: %v", err)
			}
			if len(frame) != payload.Size(len(tt.secret)+crypto.TagSize) {
				t.Errorf("frame length = %d, want %d", len(frame), payload.Size(len(tt.secret)+crypto.TagSize))
			}

			secret, err := DecryptFromPayload(frame, "Correct-Horse-42!", fastParams)
			if err != nil {
				t.Fatalf("DecryptFromPayload() error: %v", err)
			}
			if !bytes.Equal(secret, tt.secret) {
				t.Error("round trip did not recover the secret")
			}
		})
	}
}

func TestPayloadFreshness(t *testing.T) {
	secret := []byte("same secret")

	first, err := EncryptToPayload(secret, "same passphrase", fastParams)
	if err != nil {
		t.Fatalf("EncryptToPayload() error: %v", err)
	}
	second, err := EncryptToPayload(secret, "same passphrase", fastParams)
	if err != nil {
		t.Fatalf("EncryptToPayload() error: %v", err)
	}

	// Fresh salt, fresh nonce, and therefore a fresh ciphertext every call.
	if bytes.Equal(first[4:20], second[4:20]) {
		t.Error("two encryptions share a salt")
	}
	if bytes.Equal(first[20:44], second[20:44]) {
		t.Error("two encryptions share a nonce")
	}
	if bytes.Equal(first[48:], second[48:]) {
		t.Error("two encryptions share a ciphertext")
	}
}

func TestWrongPassphrase(t *testing.T) {
	frame, err := EncryptToPayload([]byte("secret"), "right", fastParams)
	if err != nil {
		t.Fatalf("EncryptToPayload() error: %v", err)
	}

	_, err = DecryptFromPayload(frame, "wrong", fastParams)
	if !errors.Is(err, crypto.ErrAuthentication) {
		t.Errorf("DecryptFromPayload() err = %v, want ErrAuthentication", err)
	}
}

func TestCiphertextTamperDetection(t *testing.T) {
	frame, err := EncryptToPayload([]byte("tamper target"), "pass", fastParams)
	if err != nil {
		t.Fatalf("EncryptToPayload() error: %v", err)
	}

	// Any single flipped ciphertext or tag bit must be caught.
	for _, bit := range []int{0, 7, 42, (len(frame)-48)*8 - 1} {
		tampered := make([]byte, len(frame))
		copy(tampered, frame)
		tampered[48+bit/8] ^= 1 << (bit % 8)

		if _, err := DecryptFromPayload(tampered, "pass", fastParams); !errors.Is(err, crypto.ErrAuthentication) {
			t.Errorf("ciphertext bit %d flipped: err = %v, want ErrAuthentication", bit, err)
		}
	}
}

func TestBadMagicFailsParse(t *testing.T) {
	frame, err := EncryptToPayload([]byte("secret"), "pass", fastParams)
	if err != nil {
		t.Fatalf("EncryptToPayload() error: %v", err)
	}
	frame[0] ^= 0x01

	_, err = DecryptFromPayload(frame, "pass", fastParams)
	var fErr *payload.FormatError
	if !errors.As(err, &fErr) {
		t.Errorf("DecryptFromPayload() err = %v, want *payload.FormatError", err)
	}
}

func TestInvalidParamsRejectedEarly(t *testing.T) {
	_, err := EncryptToPayload([]byte("secret"), "pass", Params{})
	var vErr *crypto.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("EncryptToPayload() err = %v, want *crypto.ValidationError", err)
	}
}

// Scenario: "hunter2" sealed under "Correct-Horse-42!" into a 500x500 RGB
// raster carrier, extracted and decrypted back out.
func TestBackupRestoreRasterCarrier(t *testing.T) {
	carrier := makePNG(t, 500, 500)

	capacity, err := Capacity(carrier)
	if err != nil {
		t.Fatalf("Capacity() error: %v", err)
	}
	if capacity != 93750 {
		t.Errorf("Capacity() = %d, want 93750", capacity)
	}

	stegoImg, err := Backup(carrier, []byte("hunter2"), "Correct-Horse-42!", fastParams)
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}

	secret, err := Restore(stegoImg, "Correct-Horse-42!", fastParams)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if string(secret) != "hunter2" {
		t.Errorf("Restore() = %q, want %q", secret, "hunter2")
	}
}

// Scenario: the same secret in an 800x600 quality-85 frequency-domain
// carrier, written to disk and reloaded once before restore.
func TestBackupRestoreFrequencyDomainCarrier(t *testing.T) {
	carrier := makeJPEG(t, 800, 600, 85)

	stegoImg, err := Backup(carrier, []byte("hunter2"), "Correct-Horse-42!", fastParams)
	if err != nil {
		t.Fatalf("Backup() error: %v", err)
	}

	path := filepath.Join(t.TempDir(), "stego.jpg")
	if err := os.WriteFile(path, stegoImg, 0o600); err != nil {
		t.Fatalf("writing stego image: %v", err)
	}
	reloaded, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reloading stego image: %v", err)
	}

	secret, err := Restore(reloaded, "Correct-Horse-42!", fastParams)
	if err != nil {
		t.Fatalf("Restore() error: %v", err)
	}
	if string(secret) != "hunter2" {
		t.Errorf("Restore() = %q, want %q", secret, "hunter2")
	}
}

func TestExtractPayloadWithoutSizeHint(t *testing.T) {
	carrier := makePNG(t, 64, 64)
	frame, err := EncryptToPayload([]byte("no hint needed"), "pass", fastParams)
	if err != nil {
		t.Fatalf("EncryptToPayload() error: %v", err)
	}

	stegoImg, err := Embed(carrier, frame)
	if err != nil {
		t.Fatalf("Embed() error: %v", err)
	}

	got, err := ExtractPayload(stegoImg)
	if err != nil {
		t.Fatalf("ExtractPayload() error: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Error("ExtractPayload() did not recover the exact frame")
	}
}

func TestExtractPayloadFromCleanCarrier(t *testing.T) {
	// A carrier with nothing embedded yields LSB noise; the header check
	// must reject it rather than hand back garbage.
	_, err := ExtractPayload(makePNG(t, 64, 64))
	if err == nil {
		t.Error("ExtractPayload() accepted a carrier with no payload")
	}
}

func TestBackupCapacityError(t *testing.T) {
	carrier := makePNG(t, 8, 8) // 24 bytes capacity, far below frame overhead

	_, err := Backup(carrier, []byte("does not fit"), "pass", fastParams)
	var capErr *stego.CapacityError
	if !errors.As(err, &capErr) {
		t.Errorf("Backup() err = %v, want *stego.CapacityError", err)
	}
}

func TestMaxSecretSizeAccountsForOverhead(t *testing.T) {
	carrier := makePNG(t, 64, 64)

	capacity, err := Capacity(carrier)
	if err != nil {
		t.Fatalf("Capacity() error: %v", err)
	}
	maxSecret, err := MaxSecretSize(carrier)
	if err != nil {
		t.Fatalf("MaxSecretSize() error: %v", err)
	}
	if maxSecret != capacity-64 {
		t.Errorf("MaxSecretSize() = %d, want %d", maxSecret, capacity-64)
	}

	// A secret of exactly that size fits.
	secret := bytes.Repeat([]byte{0xab}, maxSecret)
	if _, err := Backup(carrier, secret, "pass", fastParams); err != nil {
		t.Errorf("Backup() at max secret size: %v", err)
	}

	// One more byte does not.
	if _, err := Backup(carrier, append(secret, 0xab), "pass", fastParams); err == nil {
		t.Error("Backup() accepted a secret above the carrier budget")
	}
}

func TestConcurrentOperations(t *testing.T) {
	carrier := makePNG(t, 64, 64)

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func(n int) {
			secret := []byte{byte(n)}
			stegoImg, err := Backup(carrier, secret, "concurrent", fastParams)
			if err != nil {
				done <- err
				return
			}
			got, err := Restore(stegoImg, "concurrent", fastParams)
			if err != nil {
				done <- err
				return
			}
			if !bytes.Equal(got, secret) {
				done <- errors.New("concurrent round trip mismatch")
				return
			}
			done <- nil
		}(i)
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Fatal(err)
		}
	}
}
