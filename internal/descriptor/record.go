package descriptor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// TreeRecord is the internal per-item payload stored in a leaf page: a
// 64-bit compound index (assigned at ingest time by the content DB) plus
// the descriptor. TreeRecord carries no identifier or SMILES — those are
// recovered through the content DB by index (§3).
type TreeRecord struct {
	Index      uint64
	Descriptor Descriptor
}

// Size returns the on-disk size, in bytes, of a TreeRecord with
// descriptor length d: 8 bytes for the index plus 4 bytes per float (§3).
func Size(d int) int {
	return 8 + 4*d
}

// Encode writes r's byte representation (index big-endian, then D
// big-endian float32 values) into buf, which must be exactly Size(len(r.Descriptor))
// bytes long.
func Encode(r TreeRecord, buf []byte) error {
	want := Size(len(r.Descriptor))
	if len(buf) != want {
		return fmt.Errorf("descriptor.Encode: buffer length %d, want %d", len(buf), want)
	}

	binary.BigEndian.PutUint64(buf[0:8], r.Index)
	off := 8
	for _, v := range r.Descriptor {
		binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	return nil
}

// Decode parses a TreeRecord of dimension d from buf, which must be
// exactly Size(d) bytes long.
func Decode(buf []byte, d int) (TreeRecord, error) {
	want := Size(d)
	if len(buf) != want {
		return TreeRecord{}, fmt.Errorf("descriptor.Decode: buffer length %d, want %d", len(buf), want)
	}

	r := TreeRecord{
		Index:      binary.BigEndian.Uint64(buf[0:8]),
		Descriptor: make(Descriptor, d),
	}
	off := 8
	for i := 0; i < d; i++ {
		r.Descriptor[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[off : off+4]))
		off += 4
	}
	return r, nil
}
