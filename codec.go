package recsort

import (
	"encoding/binary"

	recerrors "github.com/davide-marchi/recsort/errors"
)

const (
	keySize = 8
	lenSize = 4

	// HeaderSize is the fixed per-record header: key (8B LE) + payload
	// length (4B LE). Records are written back-to-back with no padding.
	HeaderSize = keySize + lenSize
)

// DecodeHeader reads the record header at byte offset pos and validates
// that the whole record lies within data. It performs no allocation.
func DecodeHeader(data []byte, pos uint64) (key uint64, plen uint32, err error) {
	if pos+HeaderSize > uint64(len(data)) {
		return 0, 0, recerrors.ErrShortInput
	}
	key = binary.LittleEndian.Uint64(data[pos:])
	plen = binary.LittleEndian.Uint32(data[pos+keySize:])
	if pos+RecordSize(plen) > uint64(len(data)) {
		return 0, 0, recerrors.ErrPayloadOverrun
	}
	return key, plen, nil
}

// EncodeHeader writes a record header at byte offset pos. The caller must
// have sized data to hold the header.
func EncodeHeader(data []byte, pos uint64, key uint64, plen uint32) {
	binary.LittleEndian.PutUint64(data[pos:], key)
	binary.LittleEndian.PutUint32(data[pos+keySize:], plen)
}

// RecordSize returns the total on-disk size of a record with the given
// payload length.
func RecordSize(plen uint32) uint64 {
	return HeaderSize + uint64(plen)
}
