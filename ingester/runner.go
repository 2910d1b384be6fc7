package ingester

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

// LedgerData is one decoded validated ledger as delivered by the
// upstream source: the header, its transactions, the prebuilt index rows
// and any ledger objects worth persisting.
type LedgerData struct {
	Header        xrpl.LedgerHeader
	Transactions  []*xrpl.TransactionAndMetadata
	AccountTxData []xrpl.AccountTransactionsData
	Objects       []LedgerObject
	Fees          *xrpl.Fees
}

// Publisher receives the post-commit events: the subscription manager in
// production.
type Publisher interface {
	PubLedger(header xrpl.LedgerHeader, fees xrpl.Fees, ledgerRange string, txnCount uint32)
	PubTransaction(tx *xrpl.TransactionAndMetadata, header xrpl.LedgerHeader)
	PubBookChanges(header xrpl.LedgerHeader, txs []*xrpl.TransactionAndMetadata)
}

var errWriteFailed = errors.New("ledger write failed")

// LedgerWriter is the commit operation the runner drives; satisfied by
// *Writer.
type LedgerWriter interface {
	WriteLedger(ctx context.Context, header xrpl.LedgerHeader, accountTxData []xrpl.AccountTransactionsData, objects []LedgerObject) bool
}

// Runner drains the upstream ledger stream into the writer, retrying
// failed commits with exponential backoff, and publishes each committed
// ledger to the feed.
type Runner struct {
	writer LedgerWriter
	pub    Publisher
	log    *zap.Logger

	minSeq uint32
	maxSeq uint32
}

func NewRunner(writer LedgerWriter, pub Publisher, log *zap.Logger) *Runner {
	return &Runner{writer: writer, pub: pub, log: log}
}

// Run consumes ledgers until the channel closes or the context fires.
func (r *Runner) Run(ctx context.Context, ledgers <-chan *LedgerData) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ld, ok := <-ledgers:
			if !ok {
				return nil
			}
			if err := r.ingest(ctx, ld); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) ingest(ctx context.Context, ld *LedgerData) error {
	commit := func() error {
		if !r.writer.WriteLedger(ctx, ld.Header, ld.AccountTxData, ld.Objects) {
			return errWriteFailed
		}
		return nil
	}
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(commit, policy); err != nil {
		return fmt.Errorf("ingest ledger %d: %w", ld.Header.Sequence, err)
	}

	if r.minSeq == 0 || ld.Header.Sequence < r.minSeq {
		r.minSeq = ld.Header.Sequence
	}
	if ld.Header.Sequence > r.maxSeq {
		r.maxSeq = ld.Header.Sequence
	}

	r.publish(ld)
	return nil
}

func (r *Runner) publish(ld *LedgerData) {
	fees := xrpl.Fees{}
	switch {
	case ld.Fees != nil:
		fees = *ld.Fees
	default:
		feeKey := xrpl.FeeSettingsKey()
		for _, obj := range ld.Objects {
			if obj.Key != feeKey {
				continue
			}
			parsed, err := xrpl.ParseFeeSettings(obj.Blob)
			if err != nil {
				r.log.Warn("unparseable fee settings object", zap.Error(err))
				break
			}
			fees = parsed
		}
	}

	ledgerRange := fmt.Sprintf("%d-%d", r.minSeq, r.maxSeq)
	r.pub.PubLedger(ld.Header, fees, ledgerRange, uint32(len(ld.Transactions)))
	for _, tx := range ld.Transactions {
		r.pub.PubTransaction(tx, ld.Header)
	}
	r.pub.PubBookChanges(ld.Header, ld.Transactions)
}
