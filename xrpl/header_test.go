package xrpl

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var parent, txh, acch, hash Hash256
	for i := range parent {
		parent[i] = byte(i)
		txh[i] = byte(i + 1)
		acch[i] = byte(i + 2)
		hash[i] = byte(i + 3)
	}

	original := LedgerHeader{
		Sequence:            77_354_321,
		Drops:               99_999_999_999_000_000,
		ParentHash:          parent,
		TxHash:              txh,
		AccountHash:         acch,
		ParentCloseTime:     745_533_650,
		CloseTime:           745_533_651,
		CloseTimeResolution: 10,
		CloseFlags:          1,
		Hash:                hash,
	}

	data := SerializeHeader(original)
	decoded, err := DeserializeHeader(data)
	if err != nil {
		t.Fatalf("DeserializeHeader failed: %v", err)
	}
	if decoded != original {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, original)
	}
	if !bytes.Equal(SerializeHeader(decoded), data) {
		t.Error("re-encoded bytes differ from input")
	}
}

func TestDeserializeHeaderRejectsWrongLength(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"short", 100},
		{"long", 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DeserializeHeader(make([]byte, tt.size)); err == nil {
				t.Error("expected error for wrong-length input")
			}
		})
	}
}

func TestCloseTimeISO(t *testing.T) {
	tests := []struct {
		name      string
		closeTime uint32
		expected  string
	}{
		{"epoch", 0, "2000-01-01T00:00:00Z"},
		{"one day in", 86400, "2000-01-02T00:00:00Z"},
		{"mid 2023", 745533651, "2023-08-16T20:40:51Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := LedgerHeader{CloseTime: tt.closeTime}
			if got := h.CloseTimeISO(); got != tt.expected {
				t.Errorf("CloseTimeISO: got %s, want %s", got, tt.expected)
			}
		})
	}
}
