package utils

import "encoding/binary"

// ReaderAt is a simplified interface for io.ReaderAt.
type ReaderAt interface {
	ReadAt(p []byte, off int64) (n int, err error)
}

// WriterAt is a simplified interface for io.WriterAt.
type WriterAt interface {
	WriteAt(p []byte, off int64) (n int, err error)
}

// ReadUint64 reads a 64-bit value at the given offset in the given byte
// order. Most of the on-disk format is big-endian; the content-DB entry
// count header is the one little-endian exception (see package contentdb).
func ReadUint64(r ReaderAt, offset int64, order binary.ByteOrder) (uint64, error) {
	buf := GetBuffer(8)
	defer ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, offset); err != nil {
		return 0, err
	}
	return order.Uint64(buf), nil
}

// WriteUint64 writes a 64-bit value at the given offset in the given byte
// order.
func WriteUint64(w WriterAt, offset int64, order binary.ByteOrder, v uint64) error {
	buf := GetBuffer(8)
	defer ReleaseBuffer(buf)

	order.PutUint64(buf, v)
	_, err := w.WriteAt(buf, offset)
	return err
}
