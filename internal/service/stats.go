package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duelcast/betwatch/internal/domain"
)

// TrendingScanner is the unfiltered-discovery surface the stats service uses
// for the trending feed. *scanner.Scanner satisfies it.
type TrendingScanner interface {
	ScanOpen(ctx context.Context, limit int) ([]domain.BetEntry, error)
}

// StatsService answers win/loss statistics from the bet archive and serves
// the trending feed of recently opened bets.
type StatsService struct {
	archive  domain.BetArchiveStore
	trending TrendingScanner
	network  string
	logger   *slog.Logger
}

// NewStats creates a StatsService. archive may be nil when no database is
// configured; Stats then reports ErrNotFound.
func NewStats(archive domain.BetArchiveStore, trending TrendingScanner, network string, logger *slog.Logger) *StatsService {
	return &StatsService{
		archive:  archive,
		trending: trending,
		network:  network,
		logger:   logger.With(slog.String("component", "stats")),
	}
}

// Stats returns the archived win/loss record for an address. The record only
// covers bets a scan has seen; it is a running tally, not a chain audit.
func (s *StatsService) Stats(ctx context.Context, address string) (domain.BetStats, error) {
	if s.archive == nil {
		return domain.BetStats{}, fmt.Errorf("service: stats: no archive configured: %w", domain.ErrNotFound)
	}
	return s.archive.Stats(ctx, s.network, domain.NormalizeAddress(address))
}

// Trending returns up to limit recently opened, still-open bets from an
// unfiltered scan of the recent window.
func (s *StatsService) Trending(ctx context.Context, limit int) ([]domain.BetEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.trending.ScanOpen(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service: trending: %w", err)
	}
	return entries, nil
}
