package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/eugenenazirov/pallet-allocator/internal/dispatch"
	"github.com/eugenenazirov/pallet-allocator/internal/sheet"
	"github.com/eugenenazirov/pallet-allocator/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler wires the run pipeline and storage into HTTP handlers.
type Handler struct {
	runner   *dispatch.Runner
	storage  storage.Storage
	reader   *sheet.Reader
	validate *validator.Validate

	clock func() time.Time

	mu             sync.RWMutex
	tiersUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithSheetReader overrides how uploaded workbooks are parsed.
func WithSheetReader(reader *sheet.Reader) HandlerOption {
	return func(h *Handler) {
		h.reader = reader
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(runner *dispatch.Runner, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		runner:   runner,
		storage:  store,
		reader:   sheet.NewReader(nil),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.tiersUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Stage:     string(h.runner.Stage()),
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// decode parses a JSON body into dst and runs struct validation on it.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
		return false
	}
	return true
}

func (h *Handler) currentTiersUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.tiersUpdatedAt
}

func (h *Handler) markTiersUpdated() {
	h.mu.Lock()
	h.tiersUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
