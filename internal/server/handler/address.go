package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/duelcast/betwatch/internal/domain"
)

// ScanService runs a discovery scan for one address.
type ScanService interface {
	Scan(ctx context.Context, address string) (*domain.ScanResult, error)
}

// StatsService answers archived statistics and the trending feed.
type StatsService interface {
	Stats(ctx context.Context, address string) (domain.BetStats, error)
	Trending(ctx context.Context, limit int) ([]domain.BetEntry, error)
}

// AddressHandler serves per-address discovery and statistics endpoints.
type AddressHandler struct {
	scan   ScanService
	stats  StatsService
	logger *slog.Logger
}

// NewAddressHandler creates an AddressHandler.
func NewAddressHandler(scan ScanService, stats StatsService, logger *slog.Logger) *AddressHandler {
	return &AddressHandler{
		scan:   scan,
		stats:  stats,
		logger: logHandler(logger, "address"),
	}
}

// scanResponse wraps the scan endpoint output.
type scanResponse struct {
	Address string   `json:"address"`
	Loaded  bool     `json:"loaded"`
	Bets    []betDTO `json:"bets"`
	History []txDTO  `json:"history"`
}

type txDTO struct {
	TxHash      string `json:"tx_hash"`
	Action      string `json:"action"`
	Variant     string `json:"variant"`
	ID          uint64 `json:"id"`
	BlockNumber uint64 `json:"block_number"`
}

// ListBets runs a discovery scan for the address and returns its bets and
// reconstructed history. This walks the chain on every call; responses can
// take several seconds on a cold window.
// GET /api/address/{addr}/bets
func (h *AddressHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	addr := domain.NormalizeAddress(r.PathValue("addr"))
	if addr == "" {
		writeError(w, http.StatusBadRequest, "bad address")
		return
	}

	result, err := h.scan.Scan(r.Context(), addr)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: scan failed",
			slog.String("address", addr),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "scan failed")
		return
	}

	resp := scanResponse{
		Address: result.Address,
		Loaded:  result.Loaded,
		Bets:    make([]betDTO, 0, len(result.Entries)),
		History: make([]txDTO, 0, len(result.History)),
	}
	for _, e := range result.Entries {
		resp.Bets = append(resp.Bets, betEntryDTO(e))
	}
	for _, t := range result.History {
		resp.History = append(resp.History, txDTO{
			TxHash:      t.TxHash,
			Action:      t.Action,
			Variant:     string(t.Bet.Variant),
			ID:          t.Bet.ID,
			BlockNumber: t.BlockNumber,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStats returns the archived win/loss record for the address.
// GET /api/address/{addr}/stats
func (h *AddressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	addr := domain.NormalizeAddress(r.PathValue("addr"))
	if addr == "" {
		writeError(w, http.StatusBadRequest, "bad address")
		return
	}

	stats, err := h.stats.Stats(r.Context(), addr)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no archived stats")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: stats failed",
			slog.String("address", addr),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address":          addr,
		"wins":             stats.Wins,
		"losses":           stats.Losses,
		"open_bets":        stats.OpenBets,
		"total_staked_wei": weiString(stats.TotalStakedWei),
	})
}

// Trending returns recently opened, still-open bets.
// GET /api/trending?limit=20
func (h *AddressHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20, 100)

	entries, err := h.stats.Trending(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: trending failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "trending scan failed")
		return
	}

	bets := make([]betDTO, 0, len(entries))
	for _, e := range entries {
		bets = append(bets, betEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": bets})
}
