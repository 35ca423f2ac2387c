package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/duelcast/betwatch/internal/domain"
	"github.com/duelcast/betwatch/internal/service"
)

// LookupService defines what the bet handler requires from the service layer.
type LookupService interface {
	Lookup(ctx context.Context, variant domain.Variant, id uint64, viewer string) (*service.BetView, error)
	LookupAny(ctx context.Context, id uint64, viewer string) (*service.BetView, error)
}

// BetHandler serves single-bet lookup and label endpoints.
type BetHandler struct {
	lookup  LookupService
	labels  domain.LabelStore
	network string
	logger  *slog.Logger
}

// NewBetHandler creates a BetHandler. labels may be nil when no database is
// configured; label endpoints then report 404.
func NewBetHandler(lookup LookupService, labels domain.LabelStore, network string, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		lookup:  lookup,
		labels:  labels,
		network: network,
		logger:  logHandler(logger, "bet"),
	}
}

// GetBet returns one bet with its derived lifecycle state for the optional
// ?viewer= address.
// GET /api/bets/{variant}/{id}?viewer=0x...
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	variant, ok := parseVariant(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown bet variant")
		return
	}
	id, ok := parseBetID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad bet id")
		return
	}

	view, err := h.lookup.Lookup(r.Context(), variant, id, r.URL.Query().Get("viewer"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, betViewDTO(view))
}

// FindBet resolves a bare numeric id against both variants.
// GET /api/bets/{id}?viewer=0x...
func (h *BetHandler) FindBet(w http.ResponseWriter, r *http.Request) {
	id, ok := parseBetID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad bet id")
		return
	}

	view, err := h.lookup.LookupAny(r.Context(), id, r.URL.Query().Get("viewer"))
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, betViewDTO(view))
}

// GetLabel returns the stored label for a bet.
// GET /api/labels/{variant}/{id}
func (h *BetHandler) GetLabel(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.labelRef(w, r)
	if !ok {
		return
	}

	label, err := h.labels.Get(r.Context(), h.network, ref)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no label")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get label failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read label")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"label": label})
}

// PutLabel stores or replaces the label for a bet. An empty label deletes it.
// PUT /api/labels/{variant}/{id}
func (h *BetHandler) PutLabel(w http.ResponseWriter, r *http.Request) {
	ref, ok := h.labelRef(w, r)
	if !ok {
		return
	}

	var body struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad request body")
		return
	}
	if len(body.Label) > 200 {
		writeError(w, http.StatusBadRequest, "label too long")
		return
	}

	if err := h.labels.Set(r.Context(), h.network, ref, body.Label); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: set label failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to store label")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"label": body.Label})
}

func (h *BetHandler) labelRef(w http.ResponseWriter, r *http.Request) (domain.BetRef, bool) {
	if h.labels == nil {
		writeError(w, http.StatusNotFound, "labels not configured")
		return domain.BetRef{}, false
	}
	variant, ok := parseVariant(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown bet variant")
		return domain.BetRef{}, false
	}
	id, ok := parseBetID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "bad bet id")
		return domain.BetRef{}, false
	}
	return domain.BetRef{Variant: variant, ID: id}, true
}

func (h *BetHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "bet not found")
	case errors.Is(err, domain.ErrFetch):
		h.logger.WarnContext(r.Context(), "handler: lookup fetch failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "chain read failed")
	default:
		h.logger.ErrorContext(r.Context(), "handler: lookup failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "lookup failed")
	}
}
