package xrpl

import (
	"reflect"
	"testing"
)

func offerNodeMeta() map[string]any {
	return map[string]any{
		"AffectedNodes": []any{
			map[string]any{
				"ModifiedNode": map[string]any{
					"LedgerEntryType": "Offer",
					"FinalFields": map[string]any{
						"Account":   "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
						"TakerGets": "3",
						"TakerPays": map[string]any{
							"currency": "0158415500000000C1F76FF6ECB0BAC600000000",
							"issuer":   "rK9DrarGKnVEo2nYp5MfVRXRYf5yRX3mwD",
							"value":    "1",
						},
					},
					"PreviousFields": map[string]any{
						"TakerGets": "1",
						"TakerPays": map[string]any{
							"currency": "0158415500000000C1F76FF6ECB0BAC600000000",
							"issuer":   "rK9DrarGKnVEo2nYp5MfVRXRYf5yRX3mwD",
							"value":    "3",
						},
					},
				},
			},
			map[string]any{
				"ModifiedNode": map[string]any{
					"LedgerEntryType": "AccountRoot",
					"FinalFields": map[string]any{
						"Account": "rLEsXccBGNR3UPuPu2hUXPjziKC3qKSBun",
					},
				},
			},
		},
		"TransactionIndex":  float64(22),
		"TransactionResult": "tesSUCCESS",
	}
}

func TestAffectedAccounts(t *testing.T) {
	tx := &TransactionAndMetadata{Metadata: offerNodeMeta()}
	got := tx.AffectedAccounts()
	want := []string{
		"rK9DrarGKnVEo2nYp5MfVRXRYf5yRX3mwD",
		"rLEsXccBGNR3UPuPu2hUXPjziKC3qKSBun",
		"rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("AffectedAccounts: got %v, want %v", got, want)
	}
}

func TestBooks(t *testing.T) {
	tx := &TransactionAndMetadata{Metadata: offerNodeMeta()}
	books := tx.Books()
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}
	book := books[0]
	if !book.Gets.IsXRP() {
		t.Error("gets side should be XRP")
	}
	if book.Pays.Issuer != "rK9DrarGKnVEo2nYp5MfVRXRYf5yRX3mwD" {
		t.Errorf("pays issuer: got %s", book.Pays.Issuer)
	}
	expectedKey := "XRP|rK9DrarGKnVEo2nYp5MfVRXRYf5yRX3mwD/0158415500000000C1F76FF6ECB0BAC600000000"
	if book.Key() != expectedKey {
		t.Errorf("book key: got %s, want %s", book.Key(), expectedKey)
	}
}

func TestBooksDeduplicates(t *testing.T) {
	meta := offerNodeMeta()
	nodes := meta["AffectedNodes"].([]any)
	meta["AffectedNodes"] = append(nodes, nodes[0])
	tx := &TransactionAndMetadata{Metadata: meta}
	if got := len(tx.Books()); got != 1 {
		t.Errorf("expected deduplicated single book, got %d", got)
	}
}

func TestNewAccountTransactionsData(t *testing.T) {
	tx := &TransactionAndMetadata{
		Transaction: map[string]any{
			"hash": "51D2AAA6B8E4E16EF22F6424854283D8391B56875858A711B8CE4D5B9A422CC2",
		},
		Metadata:       offerNodeMeta(),
		LedgerSequence: 32,
	}
	var nodestore Hash256
	nodestore[0] = 0x42

	data, err := NewAccountTransactionsData(tx, nodestore)
	if err != nil {
		t.Fatalf("NewAccountTransactionsData failed: %v", err)
	}
	if data.LedgerSequence != 32 {
		t.Errorf("LedgerSequence: got %d", data.LedgerSequence)
	}
	if data.TransactionIndex != 22 {
		t.Errorf("TransactionIndex: got %d", data.TransactionIndex)
	}
	if len(data.Accounts) != 3 {
		t.Errorf("Accounts: got %d, want 3", len(data.Accounts))
	}
	if data.TxHash.String() != "51D2AAA6B8E4E16EF22F6424854283D8391B56875858A711B8CE4D5B9A422CC2" {
		t.Errorf("TxHash: got %s", data.TxHash)
	}
	if data.NodestoreHash != nodestore {
		t.Error("NodestoreHash mismatch")
	}
}

func TestNewAccountTransactionsDataBadHash(t *testing.T) {
	tx := &TransactionAndMetadata{
		Transaction: map[string]any{"hash": "nope"},
		Metadata:    map[string]any{},
	}
	if _, err := NewAccountTransactionsData(tx, Hash256{}); err == nil {
		t.Error("expected error for malformed hash")
	}
}
