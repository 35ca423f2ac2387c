package domain

import (
	"context"
	"io"
	"time"
)

// BetArchiveStore persists discovery results so statistics and history
// survive across sessions. Chain state remains authoritative; the archive is
// a byproduct of scans, never an input to state derivation.
type BetArchiveStore interface {
	UpsertEntries(ctx context.Context, network, address string, entries []BetEntry) error
	RecordHistory(ctx context.Context, network, address string, records []TxRecord) error
	Stats(ctx context.Context, network, address string) (BetStats, error)
}

// LabelStore persists the off-chain free-text label attached to a bet. Labels
// are display-only and never participate in state derivation.
type LabelStore interface {
	// Get returns ErrNotFound when no label has been stored for the bet.
	Get(ctx context.Context, network string, ref BetRef) (string, error)
	Set(ctx context.Context, network string, ref BetRef, label string) error
}

// PriceCache caches the ETH/USD quote used to render USD-equivalent amounts.
type PriceCache interface {
	SetEthUsd(ctx context.Context, price float64, ts time.Time) error
	// EthUsd returns ErrNotFound when no quote is cached.
	EthUsd(ctx context.Context) (float64, time.Time, error)
}

// SnapshotCache holds short-lived snapshots for the user-facing lookup
// surface. The watch session never reads it: polling must observe live state.
type SnapshotCache interface {
	// Get returns ErrNotFound on a cache miss.
	Get(ctx context.Context, network string, ref BetRef) (*BetSnapshot, error)
	Set(ctx context.Context, network string, snap *BetSnapshot, ttl time.Duration) error
}

// BlobWriter uploads an object to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ScanArchiver persists a completed discovery scan for offline analysis.
type ScanArchiver interface {
	Archive(ctx context.Context, result *ScanResult) error
}
