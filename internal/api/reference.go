package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/eugenenazirov/pallet-allocator/internal/domain"
	"github.com/eugenenazirov/pallet-allocator/internal/storage"
)

func (h *Handler) handleGetTiers(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("category"))))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid category", "category must be one of default, poland, kievit")
		return
	}

	tiers, err := h.storage.Tiers(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if category != "" {
		tiers = tiers.ForCategory(category)
	}

	writeJSON(w, http.StatusOK, tiersResponse{
		Tiers:     tierPayloads(tiers),
		UpdatedAt: h.currentTiersUpdatedAt(),
	})
}

func (h *Handler) handlePutTiers(w http.ResponseWriter, r *http.Request) {
	var req tiersRequest
	if !h.decode(w, r, &req) {
		return
	}

	category := domain.Category(req.Category)
	rows := make([]domain.Tier, 0, len(req.Tiers))
	for _, t := range req.Tiers {
		counts := make(map[domain.CarrierKey]int, len(t.Counts))
		for key, n := range t.Counts {
			counts[domain.CarrierKey(key)] = n
		}
		rows = append(rows, domain.Tier{Category: category, MinValue: t.MinValue, MaxValue: t.MaxValue, Counts: counts})
	}

	if err := h.storage.ReplaceTiers(r.Context(), category, rows); err != nil {
		if errors.Is(err, domain.ErrInvalidTiers) {
			writeError(w, http.StatusBadRequest, "Invalid tiers", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	h.markTiersUpdated()

	tiers, err := h.storage.Tiers(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tiersResponse{
		Tiers:     tierPayloads(tiers.ForCategory(category)),
		UpdatedAt: h.currentTiersUpdatedAt(),
		Message:   "Capacity tiers updated successfully",
	})
}

func (h *Handler) handleGetNumbering(w http.ResponseWriter, r *http.Request) {
	state, err := h.storage.LoadNumbering(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, numberingResponse{NumberingState: state})
}

func (h *Handler) handlePutNumbering(w http.ResponseWriter, r *http.Request) {
	var req numberingRequest
	if !h.decode(w, r, &req) {
		return
	}

	current, err := h.storage.LoadNumbering(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	next := domain.NumberingState{LastNumber: req.LastNumber, LastLetter: req.LastLetter}
	if err := h.storage.SaveNumbering(r.Context(), current, next); err != nil {
		if errors.Is(err, storage.ErrNumberingConflict) {
			writeError(w, http.StatusConflict, "Numbering changed", err.Error(), "Retry once the running allocation has finished")
			return
		}
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, numberingResponse{NumberingState: next, Message: "Numbering updated successfully"})
}

type tierPayload struct {
	MinValue int            `json:"minValue" validate:"gte=0"`
	MaxValue int            `json:"maxValue" validate:"gtefield=MinValue"`
	Counts   map[string]int `json:"counts" validate:"required,dive,keys,oneof=euro industrial alternative_euro,endkeys,gte=0"`
}

type tiersRequest struct {
	Category string        `json:"category" validate:"required,oneof=default poland kievit"`
	Tiers    []tierPayload `json:"tiers" validate:"required,min=1,dive"`
}

type tierResponse struct {
	Category string `json:"category"`
	tierPayload
}

type tiersResponse struct {
	Tiers     []tierResponse `json:"tiers"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Message   string         `json:"message,omitempty"`
}

type numberingRequest struct {
	LastNumber int    `json:"lastNumber" validate:"gte=0"`
	LastLetter string `json:"lastLetter" validate:"omitempty,alpha,lowercase"`
}

type numberingResponse struct {
	domain.NumberingState
	Message string `json:"message,omitempty"`
}

func tierPayloads(tiers domain.TierTable) []tierResponse {
	out := make([]tierResponse, 0, len(tiers))
	for _, t := range tiers {
		counts := make(map[string]int, len(domain.CarrierKeys))
		for _, key := range domain.CarrierKeys {
			counts[string(key)] = t.Count(key)
		}
		out = append(out, tierResponse{
			Category:    string(t.Category),
			tierPayload: tierPayload{MinValue: t.MinValue, MaxValue: t.MaxValue, Counts: counts},
		})
	}
	return out
}
