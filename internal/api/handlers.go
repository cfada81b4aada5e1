// Package api exposes the backup/restore core over HTTP for collaborators
// that prefer a service boundary to linking the library. Carriers and
// secrets arrive as multipart form data; nothing is retained after the
// response is written.
package api

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/stegvault/stegvault"
	"github.com/stegvault/stegvault/internal/crypto"
	"github.com/stegvault/stegvault/internal/metrics"
	"github.com/stegvault/stegvault/internal/payload"
	"github.com/stegvault/stegvault/internal/stego"
)

// Handler serves the stegvault HTTP API.
type Handler struct {
	logger          *logrus.Logger
	metrics         *metrics.Metrics
	maxRequestBytes int64

	mu        sync.RWMutex
	kdfParams crypto.Params
}

// NewHandler creates an API handler with the given KDF parameters.
func NewHandler(logger *logrus.Logger, m *metrics.Metrics, kdfParams crypto.Params, maxRequestBytes int64) *Handler {
	return &Handler{
		logger:          logger,
		metrics:         m,
		maxRequestBytes: maxRequestBytes,
		kdfParams:       kdfParams,
	}
}

// SetKDFParams swaps the derivation cost parameters, used by config reload.
// In-flight requests keep the parameters they started with.
func (h *Handler) SetKDFParams(p crypto.Params) {
	h.mu.Lock()
	h.kdfParams = p
	h.mu.Unlock()
}

func (h *Handler) params() crypto.Params {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.kdfParams
}

// Register attaches all routes to the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/v1/capacity", h.Capacity).Methods(http.MethodPost)
	r.HandleFunc("/v1/backup", h.Backup).Methods(http.MethodPost)
	r.HandleFunc("/v1/restore", h.Restore).Methods(http.MethodPost)
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Capacity reports how many payload and secret bytes a carrier can hold.
func (h *Handler) Capacity(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	carrier, _, apiErr := h.readCarrier(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	format, err := stegvault.DetectFormat(carrier)
	if err != nil {
		h.fail(w, "capacity", err)
		return
	}
	capacity, err := stegvault.Capacity(carrier)
	if err != nil {
		h.fail(w, "capacity", err)
		return
	}

	h.metrics.RecordOperation("capacity", format.String(), time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{
		"format":           format.String(),
		"capacity_bytes":   capacity,
		"max_secret_bytes": payload.MaxSecretSize(capacity),
	})
}

// Backup seals the posted secret under the posted passphrase and embeds it
// into the posted carrier, returning the stego image.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	carrier, _, apiErr := h.readCarrier(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	passphrase := r.FormValue("passphrase")
	if passphrase == "" {
		errMissingPassphrase.WriteJSON(w)
		return
	}
	secret, apiErr := readSecret(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}

	format, err := stegvault.DetectFormat(carrier)
	if err != nil {
		h.fail(w, "backup", err)
		return
	}
	out, err := stegvault.Backup(carrier, secret, passphrase, h.params())
	if err != nil {
		h.fail(w, "backup", err)
		return
	}

	h.metrics.RecordOperation("backup", format.String(), time.Since(start))
	h.metrics.RecordPayloadSize(format.String(), payload.Size(len(secret)+crypto.TagSize))

	if format == stego.FormatRaster {
		w.Header().Set("Content-Type", "image/png")
	} else {
		w.Header().Set("Content-Type", "image/jpeg")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// Restore extracts and decrypts the secret hidden in the posted carrier.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	carrier, _, apiErr := h.readCarrier(r)
	if apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	passphrase := r.FormValue("passphrase")
	if passphrase == "" {
		errMissingPassphrase.WriteJSON(w)
		return
	}

	format, err := stegvault.DetectFormat(carrier)
	if err != nil {
		h.fail(w, "restore", err)
		return
	}
	secret, err := stegvault.Restore(carrier, passphrase, h.params())
	if err != nil {
		h.fail(w, "restore", err)
		return
	}

	h.metrics.RecordOperation("restore", format.String(), time.Since(start))
	writeJSON(w, http.StatusOK, map[string]string{
		"secret": base64.StdEncoding.EncodeToString(secret),
	})
}

func (h *Handler) fail(w http.ResponseWriter, operation string, err error) {
	apiErr := TranslateError(err)
	h.metrics.RecordError(operation, apiErr.Code)
	h.logger.WithFields(logrus.Fields{
		"operation": operation,
		"code":      apiErr.Code,
	}).Warn("operation failed")
	apiErr.WriteJSON(w)
}

func (h *Handler) readCarrier(r *http.Request) ([]byte, string, *APIError) {
	r.Body = http.MaxBytesReader(nil, r.Body, h.maxRequestBytes)
	if err := r.ParseMultipartForm(h.maxRequestBytes); err != nil {
		return nil, "", &APIError{
			Code:       "ValidationError",
			Message:    "failed to parse multipart form: " + err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}
	}
	file, header, err := r.FormFile("carrier")
	if err != nil {
		return nil, "", errMissingCarrier
	}
	defer file.Close()

	carrier, err := io.ReadAll(file)
	if err != nil {
		return nil, "", &APIError{
			Code:       "ValidationError",
			Message:    "failed to read carrier: " + err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}
	}
	return carrier, header.Filename, nil
}

func readSecret(r *http.Request) ([]byte, *APIError) {
	if v := r.FormValue("secret"); v != "" {
		return []byte(v), nil
	}
	file, _, err := r.FormFile("secret_file")
	if err != nil {
		return nil, errMissingSecret
	}
	defer file.Close()

	secret, err := io.ReadAll(file)
	if err != nil {
		return nil, &APIError{
			Code:       "ValidationError",
			Message:    "failed to read secret file: " + err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}
	}
	return secret, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
