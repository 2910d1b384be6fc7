package xrpl

import (
	"encoding/binary"
	"fmt"
)

// headerSize is the canonical serialized ledger header length: seq(4) +
// drops(8) + three 256-bit hashes + parentCloseTime(4) + closeTime(4) +
// closeTimeResolution(1) + closeFlags(1) + hash(32).
const headerSize = 4 + 8 + 32 + 32 + 32 + 4 + 4 + 1 + 1 + 32

// DeserializeHeader parses a ledger header from its canonical layout.
// All integers are big-endian.
func DeserializeHeader(data []byte) (LedgerHeader, error) {
	if len(data) != headerSize {
		return LedgerHeader{}, fmt.Errorf("ledger header must be %d bytes, got %d", headerSize, len(data))
	}

	var h LedgerHeader
	pos := 0

	h.Sequence = binary.BigEndian.Uint32(data[pos:])
	pos += 4
	h.Drops = binary.BigEndian.Uint64(data[pos:])
	pos += 8
	copy(h.ParentHash[:], data[pos:])
	pos += 32
	copy(h.TxHash[:], data[pos:])
	pos += 32
	copy(h.AccountHash[:], data[pos:])
	pos += 32
	h.ParentCloseTime = binary.BigEndian.Uint32(data[pos:])
	pos += 4
	h.CloseTime = binary.BigEndian.Uint32(data[pos:])
	pos += 4
	h.CloseTimeResolution = data[pos]
	pos++
	h.CloseFlags = data[pos]
	pos++
	copy(h.Hash[:], data[pos:])

	return h, nil
}

// SerializeHeader re-encodes a ledger header into the canonical layout.
func SerializeHeader(h LedgerHeader) []byte {
	data := make([]byte, 0, headerSize)
	data = binary.BigEndian.AppendUint32(data, h.Sequence)
	data = binary.BigEndian.AppendUint64(data, h.Drops)
	data = append(data, h.ParentHash[:]...)
	data = append(data, h.TxHash[:]...)
	data = append(data, h.AccountHash[:]...)
	data = binary.BigEndian.AppendUint32(data, h.ParentCloseTime)
	data = binary.BigEndian.AppendUint32(data, h.CloseTime)
	data = append(data, h.CloseTimeResolution)
	data = append(data, h.CloseFlags)
	data = append(data, h.Hash[:]...)
	return data
}
