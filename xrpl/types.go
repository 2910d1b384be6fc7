package xrpl

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// rippleEpoch is 2000-01-01T00:00:00Z; ledger close times count seconds
// from it.
const rippleEpoch = 946684800

// Hash256 is a 256-bit identifier (ledger hash, transaction hash,
// nodestore hash, ledger object key).
type Hash256 [32]byte

// ParseHash256 parses a 64-character hex string.
func ParseHash256(s string) (Hash256, error) {
	var h Hash256
	if len(s) != 64 {
		return h, fmt.Errorf("hash must be 64 hex characters, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("invalid hash hex: %w", err)
	}
	copy(h[:], b)
	return h, nil
}

// String renders the hash as uppercase hex, the way rippled prints it.
func (h Hash256) String() string {
	return strings.ToUpper(hex.EncodeToString(h[:]))
}

// IsZero reports whether the hash is all zeroes.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// LedgerHeader is one validated ledger's header. Sequence is strictly
// increasing across commits.
type LedgerHeader struct {
	Sequence            uint32
	Hash                Hash256
	ParentHash          Hash256
	TxHash              Hash256
	AccountHash         Hash256
	Drops               uint64
	ParentCloseTime     uint32
	CloseTime           uint32
	CloseTimeResolution uint8
	CloseFlags          uint8
}

// CloseTimeISO renders the close time as ISO-8601 UTC.
func (h LedgerHeader) CloseTimeISO() string {
	return time.Unix(rippleEpoch+int64(h.CloseTime), 0).UTC().Format("2006-01-02T15:04:05Z")
}

// Fees is the current fee schedule, read from the FeeSettings ledger
// object.
type Fees struct {
	Base        uint64
	ReserveBase uint64
	ReserveInc  uint64
}

// Issue identifies one side of an order book: a currency and, for issued
// currencies, its issuer. XRP has no issuer.
type Issue struct {
	Currency string
	Issuer   string
}

// XRPIssue is the native side of a book.
func XRPIssue() Issue {
	return Issue{Currency: "XRP"}
}

// IsXRP reports whether the issue is the native currency.
func (i Issue) IsXRP() bool {
	return i.Issuer == "" && (i.Currency == "" || i.Currency == "XRP")
}

// Label renders the issue for book keying: "XRP" for the native currency,
// otherwise "issuer/currencyHex".
func (i Issue) Label() string {
	if i.IsXRP() {
		return "XRP"
	}
	return i.Issuer + "/" + i.Currency
}

// Book is an order book: what the offer owner pays out (gets taken) and
// what it takes in.
type Book struct {
	Gets Issue
	Pays Issue
}

// Key is the stable map key of a book.
func (b Book) Key() string {
	return b.Gets.Label() + "|" + b.Pays.Label()
}

// TransactionAndMetadata is one validated transaction plus its metadata,
// already decoded by the codec into JSON form, together with the raw
// blobs the codec consumed.
type TransactionAndMetadata struct {
	Transaction    map[string]any
	Metadata       map[string]any
	LedgerSequence uint32
	RawTransaction []byte
	RawMetadata    []byte
}

// TxHash returns the transaction hash from the decoded transaction.
func (t *TransactionAndMetadata) TxHash() string {
	if s, ok := t.Transaction["hash"].(string); ok {
		return s
	}
	return ""
}

// TransactionIndex returns the index of the transaction within its
// ledger, from the metadata.
func (t *TransactionAndMetadata) TransactionIndex() uint32 {
	return uint32(numberField(t.Metadata, "TransactionIndex"))
}

// EngineResult returns the transaction result code string from the
// metadata, e.g. "tesSUCCESS".
func (t *TransactionAndMetadata) EngineResult() string {
	if s, ok := t.Metadata["TransactionResult"].(string); ok {
		return s
	}
	return ""
}

// AccountTransactionsData tracks what to write to the transactions and
// account_transactions tables for one transaction.
type AccountTransactionsData struct {
	Accounts         []string
	LedgerSequence   uint32
	TransactionIndex uint32
	TxHash           Hash256
	NodestoreHash    Hash256
}

// NewAccountTransactionsData builds the row data for one transaction from
// its metadata.
func NewAccountTransactionsData(tx *TransactionAndMetadata, nodestoreHash Hash256) (AccountTransactionsData, error) {
	txHash, err := ParseHash256(tx.TxHash())
	if err != nil {
		return AccountTransactionsData{}, fmt.Errorf("transaction hash: %w", err)
	}
	return AccountTransactionsData{
		Accounts:         tx.AffectedAccounts(),
		LedgerSequence:   tx.LedgerSequence,
		TransactionIndex: tx.TransactionIndex(),
		TxHash:           txHash,
		NodestoreHash:    nodestoreHash,
	}, nil
}

func numberField(obj map[string]any, key string) float64 {
	switch v := obj[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint32:
		return float64(v)
	}
	return 0
}
