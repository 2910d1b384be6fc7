package ingester

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

type fakeWriter struct {
	mu        sync.Mutex
	failures  int
	committed []uint32
}

func (w *fakeWriter) WriteLedger(_ context.Context, header xrpl.LedgerHeader, _ []xrpl.AccountTransactionsData, _ []LedgerObject) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return false
	}
	w.committed = append(w.committed, header.Sequence)
	return true
}

type fakePublisher struct {
	mu      sync.Mutex
	ledgers []string // validated range of each PubLedger call
	txs     int
	books   int
}

func (p *fakePublisher) PubLedger(header xrpl.LedgerHeader, _ xrpl.Fees, ledgerRange string, txnCount uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ledgers = append(p.ledgers, ledgerRange)
}

func (p *fakePublisher) PubTransaction(*xrpl.TransactionAndMetadata, xrpl.LedgerHeader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs++
}

func (p *fakePublisher) PubBookChanges(xrpl.LedgerHeader, []*xrpl.TransactionAndMetadata) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.books++
}

func TestRunnerCommitsAndPublishes(t *testing.T) {
	writer := &fakeWriter{}
	pub := &fakePublisher{}
	runner := NewRunner(writer, pub, zap.NewNop())

	ledgers := make(chan *LedgerData, 2)
	ledgers <- &LedgerData{
		Header: xrpl.LedgerHeader{Sequence: 10},
		Transactions: []*xrpl.TransactionAndMetadata{
			{Transaction: map[string]any{}, Metadata: map[string]any{}},
		},
	}
	ledgers <- &LedgerData{Header: xrpl.LedgerHeader{Sequence: 11}}
	close(ledgers)

	if err := runner.Run(context.Background(), ledgers); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(writer.committed) != 2 {
		t.Fatalf("committed: got %v", writer.committed)
	}
	if pub.txs != 1 || pub.books != 2 {
		t.Errorf("publishes: txs=%d books=%d", pub.txs, pub.books)
	}
	if len(pub.ledgers) != 2 || pub.ledgers[0] != "10-10" || pub.ledgers[1] != "10-11" {
		t.Errorf("ranges: got %v", pub.ledgers)
	}
}

func TestRunnerRetriesFailedCommit(t *testing.T) {
	writer := &fakeWriter{failures: 2}
	pub := &fakePublisher{}
	runner := NewRunner(writer, pub, zap.NewNop())

	ledgers := make(chan *LedgerData, 1)
	ledgers <- &LedgerData{Header: xrpl.LedgerHeader{Sequence: 5}}
	close(ledgers)

	done := make(chan error, 1)
	go func() { done <- runner.Run(context.Background(), ledgers) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not retry to success")
	}
	if len(writer.committed) != 1 || writer.committed[0] != 5 {
		t.Errorf("committed: got %v", writer.committed)
	}
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	runner := NewRunner(&fakeWriter{}, &fakePublisher{}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := runner.Run(ctx, make(chan *LedgerData)); err == nil {
		t.Error("expected context error")
	}
}
