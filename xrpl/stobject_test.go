package xrpl

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestIsOffer(t *testing.T) {
	tests := []struct {
		name   string
		object []byte
		want   bool
	}{
		{"offer entry", []byte{0x11, 0x00, 0x6F}, true},
		{"account root", []byte{0x11, 0x00, 0x61}, false},
		{"fee settings", []byte{0x11, 0x00, 0x73}, false},
		{"empty", nil, false},
		{"one byte", []byte{0x11}, false},
		{"two bytes", []byte{0x11, 0x00}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsOffer(tt.object); got != tt.want {
				t.Errorf("IsOffer: got %v, want %v", got, tt.want)
			}
		})
	}
}

// serializeOffer builds a minimal offer entry carrying a BookDirectory.
func serializeOffer(t *testing.T, bookDirectory Hash256) []byte {
	t.Helper()
	offer := []byte{0x11, 0x00, 0x6F} // LedgerEntryType: Offer
	offer = append(offer, 0x22, 0, 0, 0, 0)
	offer = append(offer, 0x24) // Sequence
	offer = binary.BigEndian.AppendUint32(offer, 12345)
	offer = append(offer, 0x50, 16) // BookDirectory
	offer = append(offer, bookDirectory[:]...)
	return offer
}

func TestBookKeyFromOffer(t *testing.T) {
	var dir Hash256
	for i := range dir {
		dir[i] = 0xAB
	}
	offer := serializeOffer(t, dir)
	if !IsOffer(offer) {
		t.Fatal("test offer not recognized as offer")
	}

	book, err := BookKeyFromOffer(offer)
	if err != nil {
		t.Fatalf("BookKeyFromOffer failed: %v", err)
	}

	// top 24 bytes carry the book id unchanged
	if !bytes.Equal(book[:24], dir[:24]) {
		t.Errorf("book prefix altered: got %x, want %x", book[:24], dir[:24])
	}
	// low 8 bytes are the quality index and must be erased
	for i := 24; i < 32; i++ {
		if book[i] != 0 {
			t.Errorf("byte %d not zeroed: %x", i, book[i])
		}
	}
}

func TestBookKeyFromOfferMissingDirectory(t *testing.T) {
	object := []byte{0x11, 0x00, 0x6F, 0x22, 0, 0, 0, 0}
	if _, err := BookKeyFromOffer(object); err == nil {
		t.Error("expected error when BookDirectory is absent")
	}
}

func TestParseFeeSettings(t *testing.T) {
	blob := []byte{0x11, 0x00, 0x73}
	blob = append(blob, 0x22, 0, 0, 0, 0)
	blob = append(blob, 0x35)
	blob = binary.BigEndian.AppendUint64(blob, 10)
	blob = append(blob, 0x20, 30)
	blob = binary.BigEndian.AppendUint32(blob, 10)
	blob = append(blob, 0x20, 31)
	blob = binary.BigEndian.AppendUint32(blob, 20000000)
	blob = append(blob, 0x20, 32)
	blob = binary.BigEndian.AppendUint32(blob, 5000000)

	fees, err := ParseFeeSettings(blob)
	if err != nil {
		t.Fatalf("ParseFeeSettings failed: %v", err)
	}
	if fees.Base != 10 {
		t.Errorf("Base: got %d, want 10", fees.Base)
	}
	if fees.ReserveBase != 20000000 {
		t.Errorf("ReserveBase: got %d, want 20000000", fees.ReserveBase)
	}
	if fees.ReserveInc != 5000000 {
		t.Errorf("ReserveInc: got %d, want 5000000", fees.ReserveInc)
	}
}

func TestParseFeeSettingsTruncated(t *testing.T) {
	blob := []byte{0x11, 0x00, 0x73, 0x35, 0x00}
	if _, err := ParseFeeSettings(blob); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestFeeSettingsKeyStable(t *testing.T) {
	key := FeeSettingsKey()
	if key.IsZero() {
		t.Fatal("fee settings key is zero")
	}
	if key != FeeSettingsKey() {
		t.Error("fee settings key not deterministic")
	}
}
