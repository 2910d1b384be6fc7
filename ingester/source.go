package ingester

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

// wireLedger is the JSON frame the extraction layer pushes for each
// validated ledger: the raw header plus codec-decoded transactions.
type wireLedger struct {
	LedgerHeader string `json:"ledger_header"`
	Transactions []struct {
		Transaction   map[string]any `json:"transaction"`
		Meta          map[string]any `json:"meta"`
		NodestoreHash string         `json:"nodestore_hash"`
	} `json:"transactions"`
	Objects []struct {
		Key    string `json:"key"`
		Object string `json:"object"`
	} `json:"objects"`
}

// Source streams validated ledgers from the upstream extraction layer
// over a WebSocket connection, reconnecting with backoff on failure.
type Source struct {
	url string
	log *zap.Logger
	out chan *LedgerData
}

func NewSource(url string, log *zap.Logger) *Source {
	return &Source{url: url, log: log, out: make(chan *LedgerData, 8)}
}

// Ledgers is the decoded stream.
func (s *Source) Ledgers() <-chan *LedgerData { return s.out }

// Run connects and pumps until the context fires. The output channel is
// closed on return.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.out)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 0 // keep reconnecting for as long as we run

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.stream(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := policy.NextBackOff()
			s.log.Warn("upstream stream interrupted",
				zap.Error(err), zap.Duration("reconnect_in", wait))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		policy.Reset()
	}
}

func (s *Source) stream(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial upstream %s: %w", s.url, err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-stop:
		}
	}()

	s.log.Info("connected to upstream", zap.String("url", s.url))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read upstream frame: %w", err)
		}
		ld, err := decodeWireLedger(payload)
		if err != nil {
			s.log.Warn("skipping malformed upstream frame", zap.Error(err))
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.out <- ld:
		}
	}
}

func decodeWireLedger(payload []byte) (*LedgerData, error) {
	var frame wireLedger
	if err := json.Unmarshal(payload, &frame); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	headerBytes, err := hex.DecodeString(frame.LedgerHeader)
	if err != nil {
		return nil, fmt.Errorf("decode header hex: %w", err)
	}
	header, err := xrpl.DeserializeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	ld := &LedgerData{Header: header}
	for _, wtx := range frame.Transactions {
		tx := &xrpl.TransactionAndMetadata{
			Transaction:    wtx.Transaction,
			Metadata:       wtx.Meta,
			LedgerSequence: header.Sequence,
		}
		ld.Transactions = append(ld.Transactions, tx)

		var nodestoreHash xrpl.Hash256
		if wtx.NodestoreHash != "" {
			if nodestoreHash, err = xrpl.ParseHash256(wtx.NodestoreHash); err != nil {
				return nil, fmt.Errorf("nodestore hash: %w", err)
			}
		}
		txData, err := xrpl.NewAccountTransactionsData(tx, nodestoreHash)
		if err != nil {
			return nil, fmt.Errorf("ledger %d: %w", header.Sequence, err)
		}
		ld.AccountTxData = append(ld.AccountTxData, txData)
	}

	for _, wobj := range frame.Objects {
		key, err := xrpl.ParseHash256(wobj.Key)
		if err != nil {
			return nil, fmt.Errorf("object key: %w", err)
		}
		blob, err := hex.DecodeString(wobj.Object)
		if err != nil {
			return nil, fmt.Errorf("object blob: %w", err)
		}
		ld.Objects = append(ld.Objects, LedgerObject{Key: key, Blob: blob})
	}

	return ld, nil
}
