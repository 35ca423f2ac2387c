package domain

import "math/big"

// Role is the viewer's relationship to a discovered bet.
type Role string

const (
	RoleCreator      Role = "creator"
	RoleCounterparty Role = "counterparty"
)

// BetEntry is one discovery result: the authoritative live-read snapshot plus
// enrichment attached from event logs. Events are discovery hints only; phase
// always comes from the snapshot.
type BetEntry struct {
	Snapshot *BetSnapshot
	Role     Role

	// Winner and PayoutWei are attached from a resolved event when one was
	// seen inside the scan window. Used for statistics, not for phase.
	Winner    string
	PayoutWei *big.Int
}

// TxRecord is one row of the address's transaction history as reconstructed
// from event logs during discovery.
type TxRecord struct {
	TxHash      string
	Action      string
	Bet         BetRef
	BlockNumber uint64
}

// ScanResult is the outcome of one discovery scan. Loaded reports that the
// scan ran to completion; individual chunk or read failures degrade to gaps
// in Entries rather than an error, so Loaded true does not guarantee
// completeness.
type ScanResult struct {
	Address string
	Entries []BetEntry
	History []TxRecord
	Loaded  bool
}

// BetStats is the win/loss record aggregated from the bet archive.
type BetStats struct {
	Wins           int
	Losses         int
	OpenBets       int
	TotalStakedWei *big.Int
}
