// Package backend is the read side of the store: the validated range,
// ledger headers and raw ledger objects the feed bootstrap needs.
package backend

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

// Postgres reads from the tables the ingester maintains. It satisfies
// feed.Backend.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// LedgerRange returns the currently validated sequence range.
func (p *Postgres) LedgerRange(ctx context.Context) (uint32, uint32, error) {
	var minSeq, maxSeq int64
	err := p.pool.QueryRow(ctx,
		`SELECT min_seq, max_seq FROM ledger_range WHERE is_latest`).
		Scan(&minSeq, &maxSeq)
	if err != nil {
		return 0, 0, fmt.Errorf("fetch ledger range: %w", err)
	}
	return uint32(minSeq), uint32(maxSeq), nil
}

// FetchLedgerBySequence loads one ledger header.
func (p *Postgres) FetchLedgerBySequence(ctx context.Context, seq uint32) (xrpl.LedgerHeader, error) {
	var (
		hash, prevHash, accountHash, txHash []byte
		drops, closeTime, prevCloseTime     int64
		closeTimeRes, closeFlags            int16
	)
	err := p.pool.QueryRow(ctx,
		`SELECT ledger_hash, prev_hash, account_set_hash, trans_set_hash,
		        total_coins, closing_time, prev_closing_time, close_time_res, close_flags
		 FROM ledgers WHERE ledger_seq = $1`, int64(seq)).
		Scan(&hash, &prevHash, &accountHash, &txHash,
			&drops, &closeTime, &prevCloseTime, &closeTimeRes, &closeFlags)
	if err != nil {
		return xrpl.LedgerHeader{}, fmt.Errorf("fetch ledger %d: %w", seq, err)
	}

	header := xrpl.LedgerHeader{
		Sequence:            seq,
		Drops:               uint64(drops),
		CloseTime:           uint32(closeTime),
		ParentCloseTime:     uint32(prevCloseTime),
		CloseTimeResolution: uint8(closeTimeRes),
		CloseFlags:          uint8(closeFlags),
	}
	copy(header.Hash[:], hash)
	copy(header.ParentHash[:], prevHash)
	copy(header.AccountHash[:], accountHash)
	copy(header.TxHash[:], txHash)
	return header, nil
}

// FetchLedgerObject loads the most recent version of one ledger object.
func (p *Postgres) FetchLedgerObject(ctx context.Context, key xrpl.Hash256) ([]byte, error) {
	var blob []byte
	err := p.pool.QueryRow(ctx,
		`SELECT object FROM objects WHERE key = $1 ORDER BY ledger_seq DESC LIMIT 1`,
		key[:]).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("fetch ledger object %s: %w", key, err)
	}
	return blob, nil
}
