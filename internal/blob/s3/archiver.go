package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/duelcast/betwatch/internal/domain"
)

// ScanArchiver implements domain.ScanArchiver by serializing a completed
// discovery scan to JSON and uploading it under
// scans/{network}/{address}/{timestamp}.json. Archives are write-only from
// this service's point of view and exist for offline analysis; nothing reads
// them back.
type ScanArchiver struct {
	writer  domain.BlobWriter
	network string
	now     func() time.Time
}

// NewScanArchiver creates a ScanArchiver for one network.
func NewScanArchiver(writer domain.BlobWriter, network string) *ScanArchiver {
	return &ScanArchiver{
		writer:  writer,
		network: network,
		now:     time.Now,
	}
}

// Archive uploads the scan result. Empty scans are archived too: a scan that
// found nothing is still a data point.
func (a *ScanArchiver) Archive(ctx context.Context, result *domain.ScanResult) error {
	if result == nil {
		return nil
	}

	doc := archiveDoc{
		Network:    a.network,
		Address:    result.Address,
		Loaded:     result.Loaded,
		ArchivedAt: a.now().UTC().Format(time.RFC3339),
		Entries:    make([]archiveEntry, 0, len(result.Entries)),
		History:    make([]archiveTx, 0, len(result.History)),
	}
	for _, e := range result.Entries {
		if e.Snapshot == nil {
			continue
		}
		doc.Entries = append(doc.Entries, archiveEntry{
			Variant:           string(e.Snapshot.Variant),
			ID:                e.Snapshot.ID,
			Role:              string(e.Role),
			Phase:             uint8(e.Snapshot.PhaseRaw),
			Creator:           e.Snapshot.Creator,
			Counterparty:      e.Snapshot.Counterparty,
			CreatorStakeWei:   weiText(e.Snapshot.CreatorStake),
			CounterpartyStake: weiText(e.Snapshot.CounterpartyStake),
			CreatedAt:         e.Snapshot.CreatedAt,
			Winner:            e.Winner,
			PayoutWei:         weiText(e.PayoutWei),
		})
	}
	for _, r := range result.History {
		doc.History = append(doc.History, archiveTx{
			TxHash:      r.TxHash,
			Action:      r.Action,
			Variant:     string(r.Bet.Variant),
			ID:          r.Bet.ID,
			BlockNumber: r.BlockNumber,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal scan for %s: %w", result.Address, err)
	}

	path := fmt.Sprintf("scans/%s/%s/%s.json",
		a.network, result.Address, a.now().UTC().Format("20060102T150405Z"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive scan for %s: %w", result.Address, err)
	}
	return nil
}

type archiveDoc struct {
	Network    string         `json:"network"`
	Address    string         `json:"address"`
	Loaded     bool           `json:"loaded"`
	ArchivedAt string         `json:"archived_at"`
	Entries    []archiveEntry `json:"entries"`
	History    []archiveTx    `json:"history"`
}

type archiveEntry struct {
	Variant           string `json:"variant"`
	ID                uint64 `json:"id"`
	Role              string `json:"role"`
	Phase             uint8  `json:"phase"`
	Creator           string `json:"creator"`
	Counterparty      string `json:"counterparty,omitempty"`
	CreatorStakeWei   string `json:"creator_stake_wei"`
	CounterpartyStake string `json:"counterparty_stake_wei,omitempty"`
	CreatedAt         int64  `json:"created_at"`
	Winner            string `json:"winner,omitempty"`
	PayoutWei         string `json:"payout_wei,omitempty"`
}

type archiveTx struct {
	TxHash      string `json:"tx_hash"`
	Action      string `json:"action"`
	Variant     string `json:"variant"`
	ID          uint64 `json:"id"`
	BlockNumber uint64 `json:"block_number"`
}

func weiText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
