package ingester

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

// LedgerObject is one raw ledger entry keyed by its index, stored so the
// read path can serve current-state objects such as the fee settings.
type LedgerObject struct {
	Key  xrpl.Hash256
	Blob []byte
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledgers (
		ledger_seq        bigint PRIMARY KEY,
		ledger_hash       bytea NOT NULL,
		prev_hash         bytea NOT NULL,
		total_coins       bigint NOT NULL,
		closing_time      bigint NOT NULL,
		prev_closing_time bigint NOT NULL,
		close_time_res    bigint NOT NULL,
		close_flags       bigint NOT NULL,
		account_set_hash  bytea NOT NULL,
		trans_set_hash    bytea NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		trans_id          bytea PRIMARY KEY,
		ledger_seq        bigint NOT NULL,
		transaction_index bigint NOT NULL,
		nodestore_hash    bytea NOT NULL,
		UNIQUE (ledger_seq, transaction_index)
	)`,
	`CREATE TABLE IF NOT EXISTS account_transactions (
		account           text NOT NULL,
		ledger_seq        bigint NOT NULL,
		transaction_index bigint NOT NULL,
		trans_id          bytea NOT NULL,
		PRIMARY KEY (account, ledger_seq, transaction_index)
	)`,
	`CREATE TABLE IF NOT EXISTS objects (
		key        bytea NOT NULL,
		ledger_seq bigint NOT NULL,
		object     bytea,
		PRIMARY KEY (key, ledger_seq)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_range (
		is_latest bool PRIMARY KEY,
		min_seq   bigint NOT NULL,
		max_seq   bigint NOT NULL
	)`,
}

const (
	insertLedgerSQL = `INSERT INTO ledgers
		(ledger_seq, ledger_hash, prev_hash, total_coins, closing_time,
		 prev_closing_time, close_time_res, close_flags, account_set_hash, trans_set_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (ledger_seq) DO NOTHING`

	insertTransactionSQL = `INSERT INTO transactions
		(trans_id, ledger_seq, transaction_index, nodestore_hash)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (trans_id) DO NOTHING`

	insertAccountTxSQL = `INSERT INTO account_transactions
		(account, ledger_seq, transaction_index, trans_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account, ledger_seq, transaction_index) DO NOTHING`

	insertObjectSQL = `INSERT INTO objects (key, ledger_seq, object)
		VALUES ($1, $2, $3)
		ON CONFLICT (key, ledger_seq) DO NOTHING`

	// GREATEST/LEAST keep duplicate commits from regressing the marker
	advanceRangeSQL = `INSERT INTO ledger_range (is_latest, min_seq, max_seq)
		VALUES (true, $1, $1)
		ON CONFLICT (is_latest) DO UPDATE SET
			min_seq = LEAST(ledger_range.min_seq, EXCLUDED.min_seq),
			max_seq = GREATEST(ledger_range.max_seq, EXCLUDED.max_seq)`
)

// Writer commits one ledger's worth of rows as a single transaction:
// header, transactions, account-transaction index rows, optional ledger
// objects, and the validated-range marker. Either everything becomes
// visible or nothing does.
type Writer struct {
	pool *pgxpool.Pool
	log  *zap.Logger

	ledgersWritten prometheus.Counter
	txWritten      prometheus.Counter
}

// NewWriter builds a writer over the shared pool.
func NewWriter(pool *pgxpool.Pool, log *zap.Logger, reg prometheus.Registerer) *Writer {
	w := &Writer{pool: pool, log: log}
	if reg != nil {
		w.ledgersWritten = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingester_ledgers_written_total",
			Help: "Ledgers durably committed.",
		})
		w.txWritten = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingester_transactions_written_total",
			Help: "Transactions durably committed.",
		})
		reg.MustRegister(w.ledgersWritten, w.txWritten)
	}
	return w
}

// EnsureSchema creates the tables if they do not exist yet.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := w.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// WriteLedger commits one ledger. The write is idempotent: re-presenting
// an already-committed sequence neither duplicates rows nor regresses
// the range marker. Returns whether the commit succeeded; the cause of a
// failure is logged, not returned.
func (w *Writer) WriteLedger(ctx context.Context, header xrpl.LedgerHeader, accountTxData []xrpl.AccountTransactionsData, objects []LedgerObject) bool {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		w.log.Error("begin ledger commit", zap.Uint32("seq", header.Sequence), zap.Error(err))
		return false
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	batch.Queue(insertLedgerSQL,
		int64(header.Sequence),
		header.Hash[:],
		header.ParentHash[:],
		int64(header.Drops),
		int64(header.CloseTime),
		int64(header.ParentCloseTime),
		int16(header.CloseTimeResolution),
		int16(header.CloseFlags),
		header.AccountHash[:],
		header.TxHash[:],
	)

	txCount := 0
	for _, txd := range accountTxData {
		batch.Queue(insertTransactionSQL,
			txd.TxHash[:],
			int64(txd.LedgerSequence),
			int64(txd.TransactionIndex),
			txd.NodestoreHash[:],
		)
		txCount++
		for _, account := range txd.Accounts {
			batch.Queue(insertAccountTxSQL,
				account,
				int64(txd.LedgerSequence),
				int64(txd.TransactionIndex),
				txd.TxHash[:],
			)
		}
	}

	for _, obj := range objects {
		batch.Queue(insertObjectSQL, obj.Key[:], int64(header.Sequence), obj.Blob)
	}

	batch.Queue(advanceRangeSQL, int64(header.Sequence))

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			w.log.Error("ledger commit statement failed",
				zap.Uint32("seq", header.Sequence), zap.Error(err))
			return false
		}
	}
	if err := br.Close(); err != nil {
		w.log.Error("close ledger commit batch", zap.Uint32("seq", header.Sequence), zap.Error(err))
		return false
	}

	if err := tx.Commit(ctx); err != nil {
		w.log.Error("commit ledger", zap.Uint32("seq", header.Sequence), zap.Error(err))
		return false
	}

	if w.ledgersWritten != nil {
		w.ledgersWritten.Inc()
		w.txWritten.Add(float64(txCount))
	}
	w.log.Info("ledger committed",
		zap.Uint32("seq", header.Sequence),
		zap.String("hash", header.Hash.String()),
		zap.Int("transactions", txCount))
	return true
}
