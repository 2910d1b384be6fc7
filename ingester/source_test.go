package ingester

import (
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/withObsrvr/xrpl-index-service/xrpl"
)

func TestDecodeWireLedger(t *testing.T) {
	header := xrpl.LedgerHeader{
		Sequence:  30,
		Drops:     100_000_000,
		CloseTime: 1000,
	}
	for i := range header.Hash {
		header.Hash[i] = byte(i)
	}

	frame := map[string]any{
		"ledger_header": hex.EncodeToString(xrpl.SerializeHeader(header)),
		"transactions": []any{
			map[string]any{
				"transaction": map[string]any{
					"TransactionType": "Payment",
					"hash":            "51D2AAA6B8E4E16EF22F6424854283D8391B56875858A711B8CE4D5B9A422CC2",
				},
				"meta": map[string]any{
					"TransactionIndex":  1,
					"TransactionResult": "tesSUCCESS",
					"AffectedNodes": []any{
						map[string]any{
							"ModifiedNode": map[string]any{
								"LedgerEntryType": "AccountRoot",
								"FinalFields": map[string]any{
									"Account": "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn",
								},
							},
						},
					},
				},
				"nodestore_hash": "4BC50C9B0D8515D3EAAE1E74B29A95804346C491EE1A95BF25E4AAB854A6A652",
			},
		},
		"objects": []any{
			map[string]any{
				"key":    "4BC50C9B0D8515D3EAAE1E74B29A95804346C491EE1A95BF25E4AAB854A6A652",
				"object": "11006f",
			},
		},
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		t.Fatal(err)
	}

	ld, err := decodeWireLedger(payload)
	if err != nil {
		t.Fatalf("decodeWireLedger failed: %v", err)
	}
	if ld.Header.Sequence != 30 {
		t.Errorf("sequence: got %d", ld.Header.Sequence)
	}
	if ld.Header.Drops != 100_000_000 {
		t.Errorf("drops: got %d", ld.Header.Drops)
	}
	if len(ld.Transactions) != 1 {
		t.Fatalf("transactions: got %d", len(ld.Transactions))
	}
	if len(ld.AccountTxData) != 1 {
		t.Fatalf("account tx data: got %d", len(ld.AccountTxData))
	}
	data := ld.AccountTxData[0]
	if data.LedgerSequence != 30 || data.TransactionIndex != 1 {
		t.Errorf("row keys: got (%d, %d)", data.LedgerSequence, data.TransactionIndex)
	}
	if len(data.Accounts) != 1 || data.Accounts[0] != "rf1BiGeXwwQoi8Z2ueFYTEXSwuJYfV2Jpn" {
		t.Errorf("accounts: got %v", data.Accounts)
	}
	if len(ld.Objects) != 1 {
		t.Fatalf("objects: got %d", len(ld.Objects))
	}
	if !xrpl.IsOffer(ld.Objects[0].Blob) {
		t.Error("object blob mangled in transit")
	}
}

func TestDecodeWireLedgerRejectsBadHeader(t *testing.T) {
	payload := []byte(`{"ledger_header":"deadbeef"}`)
	if _, err := decodeWireLedger(payload); err == nil {
		t.Error("expected error for truncated header")
	}
}

func TestDecodeWireLedgerRejectsBadJSON(t *testing.T) {
	if _, err := decodeWireLedger([]byte(`{nope`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}
