package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/duelcast/betwatch/internal/domain"
)

// BetStore implements domain.BetArchiveStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// UpsertEntries writes one scan's discovery results for an address. Later
// scans overwrite earlier rows for the same bet; on-chain state stays
// authoritative and this table is a byproduct of scans.
func (s *BetStore) UpsertEntries(ctx context.Context, network, address string, entries []domain.BetEntry) error {
	if len(entries) == 0 {
		return nil
	}

	const query = `
		INSERT INTO bet_archive (
			network, address, variant, bet_id, role, phase,
			creator, counterparty, creator_stake_wei, counterparty_stake_wei,
			odds_bps, fee_bps, creator_side_yes,
			join_deadline, resolve_deadline, created_onchain_at,
			winner, payout_wei, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13,
			$14, $15, $16,
			$17, $18, NOW()
		)
		ON CONFLICT (network, address, variant, bet_id) DO UPDATE SET
			role                   = EXCLUDED.role,
			phase                  = EXCLUDED.phase,
			creator                = EXCLUDED.creator,
			counterparty           = EXCLUDED.counterparty,
			creator_stake_wei      = EXCLUDED.creator_stake_wei,
			counterparty_stake_wei = EXCLUDED.counterparty_stake_wei,
			odds_bps               = EXCLUDED.odds_bps,
			fee_bps                = EXCLUDED.fee_bps,
			creator_side_yes       = EXCLUDED.creator_side_yes,
			join_deadline          = EXCLUDED.join_deadline,
			resolve_deadline       = EXCLUDED.resolve_deadline,
			created_onchain_at     = EXCLUDED.created_onchain_at,
			winner                 = CASE WHEN EXCLUDED.winner <> '' THEN EXCLUDED.winner ELSE bet_archive.winner END,
			payout_wei             = CASE WHEN EXCLUDED.winner <> '' THEN EXCLUDED.payout_wei ELSE bet_archive.payout_wei END,
			updated_at             = NOW()`

	address = domain.NormalizeAddress(address)

	batch := &pgx.Batch{}
	for _, e := range entries {
		snap := e.Snapshot
		if snap == nil {
			continue
		}
		batch.Queue(query,
			network, address, string(snap.Variant), int64(snap.ID), string(e.Role), int16(snap.PhaseRaw),
			snap.Creator, snap.Counterparty, weiText(snap.CreatorStake), weiText(snap.CounterpartyStake),
			int16(snap.OddsBps), int16(snap.FeeBps), snap.CreatorSideYes,
			snap.JoinDeadline, snap.ResolveDeadline, snap.CreatedAt,
			domain.NormalizeAddress(e.Winner), weiText(e.PayoutWei),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert bet entries for %s: %w", address, err)
		}
	}
	return nil
}

// RecordHistory appends the address's reconstructed transaction history. Rows
// already recorded are skipped, so re-scanning the same window is idempotent.
func (s *BetStore) RecordHistory(ctx context.Context, network, address string, records []domain.TxRecord) error {
	if len(records) == 0 {
		return nil
	}

	const query = `
		INSERT INTO bet_history (
			network, address, tx_hash, action, variant, bet_id, block_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING`

	address = domain.NormalizeAddress(address)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(query,
			network, address, r.TxHash, r.Action,
			string(r.Bet.Variant), int64(r.Bet.ID), int64(r.BlockNumber),
		)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range batch.Len() {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("postgres: record history for %s: %w", address, err)
		}
	}
	return nil
}

// Stats aggregates the win/loss record and open-bet exposure for an address
// from the archive.
func (s *BetStore) Stats(ctx context.Context, network, address string) (domain.BetStats, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE phase = 2 AND winner = $2)                     AS wins,
			COUNT(*) FILTER (WHERE phase = 2 AND winner <> '' AND winner <> $2)   AS losses,
			COUNT(*) FILTER (WHERE phase IN (0, 1))                               AS open_bets,
			COALESCE(SUM(
				CASE WHEN role = 'creator' THEN creator_stake_wei
				     ELSE counterparty_stake_wei END
			), 0)::TEXT AS total_staked
		FROM bet_archive
		WHERE network = $1 AND address = $2`

	address = domain.NormalizeAddress(address)

	var (
		stats  domain.BetStats
		staked string
	)
	err := s.pool.QueryRow(ctx, query, network, address).
		Scan(&stats.Wins, &stats.Losses, &stats.OpenBets, &staked)
	if err != nil {
		return domain.BetStats{}, fmt.Errorf("postgres: stats for %s: %w", address, err)
	}

	total, ok := new(big.Int).SetString(staked, 10)
	if !ok {
		return domain.BetStats{}, fmt.Errorf("postgres: stats for %s: bad total %q", address, staked)
	}
	stats.TotalStakedWei = total
	return stats, nil
}

func weiText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
