package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duelcast/betwatch/internal/domain"
)

type fakeScan struct {
	result *domain.ScanResult
	err    error
	addr   string
}

func (f *fakeScan) Scan(_ context.Context, address string) (*domain.ScanResult, error) {
	f.addr = address
	return f.result, f.err
}

type fakeStats struct {
	stats    domain.BetStats
	statsErr error
	entries  []domain.BetEntry
	err      error
	limit    int
}

func (f *fakeStats) Stats(context.Context, string) (domain.BetStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeStats) Trending(_ context.Context, limit int) ([]domain.BetEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

func addrRequest(target, addr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.SetPathValue("addr", addr)
	return r
}

func scanEntry(id uint64, role domain.Role) domain.BetEntry {
	return domain.BetEntry{
		Snapshot: &domain.BetSnapshot{
			ID:                id,
			Variant:           domain.VariantChallenge,
			Creator:           "0x1111111111111111111111111111111111111111",
			CreatorStake:      big.NewInt(1000),
			CounterpartyStake: big.NewInt(1000),
			PhaseRaw:          domain.RawOpen,
		},
		Role: role,
	}
}

func TestListBets(t *testing.T) {
	scan := &fakeScan{result: &domain.ScanResult{
		Address: "0xabcd",
		Loaded:  true,
		Entries: []domain.BetEntry{scanEntry(1, domain.RoleCreator)},
		History: []domain.TxRecord{{
			TxHash:      "0xdead",
			Action:      "created",
			Bet:         domain.BetRef{Variant: domain.VariantChallenge, ID: 1},
			BlockNumber: 100,
		}},
	}}
	h := NewAddressHandler(scan, &fakeStats{}, discardLogger())

	w := httptest.NewRecorder()
	h.ListBets(w, addrRequest("/api/address/0xABCD/bets", "0xABCD"))

	require.Equal(t, http.StatusOK, w.Code)
	// Handler normalizes before scanning.
	assert.Equal(t, "0xabcd", scan.addr)

	var body struct {
		Address string `json:"address"`
		Loaded  bool   `json:"loaded"`
		Bets    []struct {
			ID    uint64 `json:"id"`
			Role  string `json:"role"`
			Phase string `json:"phase"`
		} `json:"bets"`
		History []struct {
			Action      string `json:"action"`
			BlockNumber uint64 `json:"block_number"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Loaded)
	require.Len(t, body.Bets, 1)
	assert.Equal(t, "creator", body.Bets[0].Role)
	assert.Equal(t, "awaiting-counterparty", body.Bets[0].Phase)
	require.Len(t, body.History, 1)
	assert.Equal(t, "created", body.History[0].Action)
}

func TestListBetsScanFailure(t *testing.T) {
	scan := &fakeScan{err: fmt.Errorf("head: %w", domain.ErrFetch)}
	h := NewAddressHandler(scan, &fakeStats{}, discardLogger())

	w := httptest.NewRecorder()
	h.ListBets(w, addrRequest("/api/address/0xabcd/bets", "0xabcd"))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestListBetsEmptyAddress(t *testing.T) {
	h := NewAddressHandler(&fakeScan{}, &fakeStats{}, discardLogger())
	w := httptest.NewRecorder()
	h.ListBets(w, addrRequest("/api/address//bets", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStats(t *testing.T) {
	stats := &fakeStats{stats: domain.BetStats{
		Wins:           3,
		Losses:         1,
		OpenBets:       2,
		TotalStakedWei: big.NewInt(5_000_000),
	}}
	h := NewAddressHandler(&fakeScan{}, stats, discardLogger())

	w := httptest.NewRecorder()
	h.GetStats(w, addrRequest("/api/address/0xabcd/stats", "0xabcd"))

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["wins"])
	assert.Equal(t, float64(1), body["losses"])
	assert.Equal(t, float64(2), body["open_bets"])
	assert.Equal(t, "5000000", body["total_staked_wei"])
}

func TestGetStatsNoArchive(t *testing.T) {
	stats := &fakeStats{statsErr: fmt.Errorf("archive: %w", domain.ErrNotFound)}
	h := NewAddressHandler(&fakeScan{}, stats, discardLogger())

	w := httptest.NewRecorder()
	h.GetStats(w, addrRequest("/api/address/0xabcd/stats", "0xabcd"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTrending(t *testing.T) {
	stats := &fakeStats{entries: []domain.BetEntry{scanEntry(1, domain.RoleCreator)}}
	h := NewAddressHandler(&fakeScan{}, stats, discardLogger())

	w := httptest.NewRecorder()
	h.Trending(w, httptest.NewRequest(http.MethodGet, "/api/trending", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, stats.limit)

	// Limit is capped at 100.
	w = httptest.NewRecorder()
	h.Trending(w, httptest.NewRequest(http.MethodGet, "/api/trending?limit=5000", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 100, stats.limit)
}

func TestTrendingScanFailure(t *testing.T) {
	stats := &fakeStats{err: errors.New("rate limited")}
	h := NewAddressHandler(&fakeScan{}, stats, discardLogger())

	w := httptest.NewRecorder()
	h.Trending(w, httptest.NewRequest(http.MethodGet, "/api/trending", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
