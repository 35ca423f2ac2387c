package chain

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultChunkBlocks is the provider-safe getLogs window. Public Base
// endpoints reject ranges wider than 10k blocks.
const DefaultChunkBlocks = 9_999

// Query describes one bounded log fetch. Topics follows the eth_getLogs
// position semantics: Topics[0] matches the event signature, nil positions
// are wildcards.
type Query struct {
	Contract  common.Address
	Topics    [][]common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// LogSource is the narrow read surface LogReader needs. *Client satisfies it.
type LogSource interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// LogReader walks a block window in fixed-size chunks, newest chunk first. A
// chunk that errors is treated as empty (its logs are possibly missed) rather
// than aborting the walk; retry policy belongs to the caller, which for
// background polling is simply the next cycle.
type LogReader struct {
	src    LogSource
	chunk  uint64
	logger *slog.Logger
}

// NewLogReader creates a LogReader with the given chunk size; zero selects
// DefaultChunkBlocks.
func NewLogReader(src LogSource, chunkBlocks uint64, logger *slog.Logger) *LogReader {
	if chunkBlocks == 0 {
		chunkBlocks = DefaultChunkBlocks
	}
	return &LogReader{
		src:    src,
		chunk:  chunkBlocks,
		logger: logger.With(slog.String("component", "logreader")),
	}
}

// Fetch returns all logs matching q across [FromBlock, ToBlock]. Chunks are
// fetched sequentially in descending block order; within a chunk the provider
// returns ascending block order. Callers must not assume global ordering and
// should sort explicitly if they need it.
func (r *LogReader) Fetch(ctx context.Context, q Query) ([]types.Log, error) {
	if q.ToBlock < q.FromBlock {
		return nil, nil
	}

	var out []types.Log
	end := q.ToBlock
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		start := q.FromBlock
		if end >= r.chunk && end-r.chunk+1 > q.FromBlock {
			start = end - r.chunk + 1
		}

		logs, err := r.src.FilterLogs(ctx, ethereum.FilterQuery{
			Addresses: []common.Address{q.Contract},
			Topics:    q.Topics,
			FromBlock: new(big.Int).SetUint64(start),
			ToBlock:   new(big.Int).SetUint64(end),
		})
		if err != nil {
			r.logger.Warn("log chunk failed, treating as empty",
				slog.Uint64("from", start),
				slog.Uint64("to", end),
				slog.String("error", err.Error()),
			)
		} else {
			out = append(out, logs...)
		}

		if start == q.FromBlock {
			break
		}
		end = start - 1
	}
	return out, nil
}
