package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eugenenazirov/pallet-allocator/internal/dispatch"
	"github.com/eugenenazirov/pallet-allocator/internal/domain"
	"github.com/eugenenazirov/pallet-allocator/internal/sheet"
	"github.com/eugenenazirov/pallet-allocator/internal/storage"
)

const (
	maxWorkbookBytes = 32 << 20
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	runIDHeader   = "X-Run-ID"
	runKindHeader = "X-Run-Kind"
)

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocationRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	outcome := h.runner.Execute(r.Context(), dispatch.StaticSource(req.Orders), dispatch.Discard)
	elapsed := time.Since(start)
	setRunHeaders(w, outcome)

	if outcome.Kind == dispatch.Fatal {
		writeRunFailure(w, outcome)
		return
	}

	status := http.StatusOK
	if outcome.Kind == dispatch.EmptyInput {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, allocationResponse{
		RunID:            outcome.RunID,
		Kind:             outcome.Kind,
		Rows:             nonNil(outcome.Rows),
		Unplaced:         nonNil(outcome.Unplaced),
		Placed:           outcome.Placed(),
		Numbering:        outcome.Numbering,
		AllocationTimeMs: elapsed.Milliseconds(),
	})
}

func (h *Handler) handleAllocateWorkbook(w http.ResponseWriter, r *http.Request) {
	lines, err := h.reader.Read(http.MaxBytesReader(w, r.Body, maxWorkbookBytes))
	if err != nil {
		if errors.Is(err, sheet.ErrMissingColumn) || errors.Is(err, sheet.ErrNoSheet) {
			writeError(w, http.StatusBadRequest, "Invalid workbook", err.Error(),
				"The first row must name the product code, quantity, ratio and logistic key columns")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid workbook", err.Error())
		return
	}

	sink := &workbookSink{}
	outcome := h.runner.Execute(r.Context(), dispatch.StaticSource(lines), sink)
	setRunHeaders(w, outcome)
	if outcome.Kind == dispatch.Fatal {
		writeRunFailure(w, outcome)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="allocation-`+outcome.RunID+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sink.buf.Bytes())
}

// setRunHeaders tags the response with the run it belongs to.
func setRunHeaders(w http.ResponseWriter, outcome dispatch.Outcome) {
	w.Header().Set(runIDHeader, outcome.RunID)
	w.Header().Set(runKindHeader, string(outcome.Kind))
}

func writeRunFailure(w http.ResponseWriter, outcome dispatch.Outcome) {
	cause := outcome.Err()
	switch {
	case errors.Is(cause, dispatch.ErrRunInProgress):
		writeError(w, http.StatusConflict, "Allocation in progress", cause.Error(), "Retry once the running allocation has finished")
	case errors.Is(cause, storage.ErrNumberingConflict):
		writeError(w, http.StatusConflict, "Numbering changed", cause.Error(), "Run the allocation again")
	default:
		writeInternalError(w, cause)
	}
}

// workbookSink renders the outcome into an in-memory workbook.
type workbookSink struct {
	buf bytes.Buffer
}

func (s *workbookSink) Write(_ context.Context, outcome dispatch.Outcome) error {
	return sheet.WriteTo(&s.buf, outcome)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type allocationRequest struct {
	Orders []domain.OrderLine `json:"orders" validate:"required,min=1"`
}

type allocationResponse struct {
	RunID            string                `json:"runId"`
	Kind             dispatch.Kind         `json:"kind"`
	Rows             []domain.Row          `json:"rows"`
	Unplaced         []dispatch.Unplaced   `json:"unplaced"`
	Placed           int                   `json:"placed"`
	Numbering        domain.NumberingState `json:"numbering"`
	AllocationTimeMs int64                 `json:"allocationTimeMs"`
}
