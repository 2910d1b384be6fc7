package xrpl

import (
	"crypto/sha512"
	"encoding/binary"
	"fmt"
)

// Serialized-object field types, per the XRPL binary format.
const (
	stUInt16    = 1
	stUInt32    = 2
	stUInt64    = 3
	stHash128   = 4
	stHash256   = 5
	stAmount    = 6
	stBlob      = 7
	stAccountID = 8
	stVector256 = 19
)

// Field codes the service needs to interpret itself. The full codec stays
// upstream; this walker only covers ledger-object shapes the indexer
// reads: offers and the legacy FeeSettings entry.
const (
	fieldLedgerEntryType  = 1  // UInt16
	fieldFlags            = 2  // UInt32
	fieldBaseFee          = 5  // UInt64
	fieldBookDirectory    = 16 // Hash256
	fieldReferenceFee     = 30 // UInt32
	fieldReserveBase      = 31 // UInt32
	fieldReserveIncrement = 32 // UInt32
)

// ledgerEntryTypeOffer is the 16-bit LedgerEntryType value of an Offer.
const ledgerEntryTypeOffer = 0x006F

// IsOffer reports whether a serialized ledger object is an Offer. The
// entry type is the value of the leading LedgerEntryType field, which sits
// in bytes 1..2 of every serialized entry. Objects too short to carry it
// are not offers.
func IsOffer(object []byte) bool {
	if len(object) < 3 {
		return false
	}
	return binary.BigEndian.Uint16(object[1:3]) == ledgerEntryTypeOffer
}

// BookKeyFromOffer extracts the book key of a serialized offer: the
// BookDirectory field with the low 8 bytes zeroed. The zeroed suffix is
// the in-book quality index and must be erased for keying.
func BookKeyFromOffer(offer []byte) (Hash256, error) {
	w := fieldWalker{data: offer}
	for !w.done() {
		typ, field, err := w.readFieldID()
		if err != nil {
			return Hash256{}, err
		}
		value, err := w.readValue(typ)
		if err != nil {
			return Hash256{}, err
		}
		if typ == stHash256 && field == fieldBookDirectory {
			var book Hash256
			copy(book[:], value)
			for i := 0; i < 8; i++ {
				book[len(book)-1-i] = 0x00
			}
			return book, nil
		}
	}
	return Hash256{}, fmt.Errorf("offer has no BookDirectory field")
}

// ParseFeeSettings reads the legacy FeeSettings ledger object: BaseFee
// (u64), ReferenceFeeUnits, ReserveBase and ReserveIncrement (u32).
func ParseFeeSettings(blob []byte) (Fees, error) {
	var fees Fees
	w := fieldWalker{data: blob}
	for !w.done() {
		typ, field, err := w.readFieldID()
		if err != nil {
			return Fees{}, err
		}
		value, err := w.readValue(typ)
		if err != nil {
			return Fees{}, err
		}
		switch {
		case typ == stUInt64 && field == fieldBaseFee:
			fees.Base = binary.BigEndian.Uint64(value)
		case typ == stUInt32 && field == fieldReserveBase:
			fees.ReserveBase = uint64(binary.BigEndian.Uint32(value))
		case typ == stUInt32 && field == fieldReserveIncrement:
			fees.ReserveInc = uint64(binary.BigEndian.Uint32(value))
		}
	}
	return fees, nil
}

// FeeSettingsKey is the well-known key of the FeeSettings ledger object:
// the first half of SHA-512 over the 'e' ledger namespace.
func FeeSettingsKey() Hash256 {
	sum := sha512.Sum512([]byte{0x00, 'e'})
	var key Hash256
	copy(key[:], sum[:32])
	return key
}

// fieldWalker steps through the flat fields of a serialized object.
type fieldWalker struct {
	data []byte
	pos  int
}

func (w *fieldWalker) done() bool {
	return w.pos >= len(w.data)
}

func (w *fieldWalker) take(n int) ([]byte, error) {
	if w.pos+n > len(w.data) {
		return nil, fmt.Errorf("truncated serialized object at offset %d", w.pos)
	}
	b := w.data[w.pos : w.pos+n]
	w.pos += n
	return b, nil
}

// readFieldID decodes a field header: type in the high nibble, field code
// in the low nibble, each spilling to a following byte when >= 16.
func (w *fieldWalker) readFieldID() (typ int, field int, err error) {
	b, err := w.take(1)
	if err != nil {
		return 0, 0, err
	}
	typ = int(b[0] >> 4)
	field = int(b[0] & 0x0F)
	if typ == 0 {
		t, err := w.take(1)
		if err != nil {
			return 0, 0, err
		}
		typ = int(t[0])
	}
	if field == 0 {
		f, err := w.take(1)
		if err != nil {
			return 0, 0, err
		}
		field = int(f[0])
	}
	return typ, field, nil
}

func (w *fieldWalker) readValue(typ int) ([]byte, error) {
	switch typ {
	case stUInt16:
		return w.take(2)
	case stUInt32:
		return w.take(4)
	case stUInt64:
		return w.take(8)
	case stHash128:
		return w.take(16)
	case stHash256:
		return w.take(32)
	case stAmount:
		peek, err := w.take(1)
		if err != nil {
			return nil, err
		}
		// issued amounts carry a 20-byte currency and 20-byte issuer
		// after the 8-byte value; native amounts are the value alone
		size := 7
		if peek[0]&0x80 != 0 {
			size = 47
		}
		rest, err := w.take(size)
		if err != nil {
			return nil, err
		}
		return append(peek, rest...), nil
	case stBlob, stAccountID, stVector256:
		n, err := w.readVLLength()
		if err != nil {
			return nil, err
		}
		return w.take(n)
	default:
		return nil, fmt.Errorf("unsupported serialized field type %d", typ)
	}
}

func (w *fieldWalker) readVLLength() (int, error) {
	b, err := w.take(1)
	if err != nil {
		return 0, err
	}
	first := int(b[0])
	switch {
	case first <= 192:
		return first, nil
	case first <= 240:
		b2, err := w.take(1)
		if err != nil {
			return 0, err
		}
		return 193 + (first-193)*256 + int(b2[0]), nil
	case first <= 254:
		b2, err := w.take(2)
		if err != nil {
			return 0, err
		}
		return 12481 + (first-241)*65536 + int(b2[0])*256 + int(b2[1]), nil
	default:
		return 0, fmt.Errorf("invalid variable-length prefix %d", first)
	}
}
