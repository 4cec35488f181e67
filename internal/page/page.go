// Package page implements the fixed-length leaf page: a byte buffer holding
// a bounded, densely packed run of TreeRecords (§3, §4.2).
package page

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/molecularmodelinglab/simsearchserver/internal/descriptor"
	"github.com/molecularmodelinglab/simsearchserver/internal/utils"
)

// TypeTag identifies the page type byte at offset 0. Only Leaf is defined;
// the byte exists so a future page type could be distinguished on read.
const TypeTag = 2

const (
	offsetTag   = 0
	offsetCount = 1
	offsetRes   = 5
	// DataStart is the byte offset of the first record slot (§3, §4.2).
	DataStart = 6
)

// ErrPageFull is returned by Add when the page has no free slot. It is an
// internal signal: the tree catches it and triggers Split (§4.6, §7).
var ErrPageFull = errors.New("leaf page is full")

// ErrCorruptPage is returned by FromBytes when the page header is
// implausible (wrong type tag, or a record count exceeding capacity).
var ErrCorruptPage = errors.New("corrupt leaf page")

// LeafPage owns a length-L buffer and a tail counter (the next free slot).
// Records are written in insertion order; order inside a leaf carries no
// semantic meaning since queries scan every record (§4.2).
type LeafPage struct {
	length     int
	descLen    int
	recordSize int
	capacity   int
	tail       int
	buf        []byte
}

// New creates an empty leaf page of length L for a tree of dimension D.
func New(length, descLen int) (*LeafPage, error) {
	recordSize := descriptor.Size(descLen)
	capacity, err := utils.LeafCapacity(uint64(length), DataStart, uint64(recordSize))
	if err != nil {
		return nil, utils.WrapError("creating leaf page", err)
	}

	buf := make([]byte, length)
	buf[offsetTag] = TypeTag

	return &LeafPage{
		length:     length,
		descLen:    descLen,
		recordSize: recordSize,
		capacity:   capacity,
		tail:       0,
		buf:        buf,
	}, nil
}

// FromBytes parses a leaf page of length L, dimension D from buf. buf is
// copied; the returned page does not alias the caller's slice.
func FromBytes(length, descLen int, buf []byte) (*LeafPage, error) {
	if len(buf) != length {
		return nil, fmt.Errorf("%w: buffer length %d, want %d", ErrCorruptPage, len(buf), length)
	}

	recordSize := descriptor.Size(descLen)
	capacity, err := utils.LeafCapacity(uint64(length), DataStart, uint64(recordSize))
	if err != nil {
		return nil, utils.WrapError("parsing leaf page", err)
	}

	if buf[offsetTag] != TypeTag {
		return nil, fmt.Errorf("%w: type tag %d, want %d", ErrCorruptPage, buf[offsetTag], TypeTag)
	}

	count := binary.BigEndian.Uint32(buf[offsetCount : offsetCount+4])
	if int(count) > capacity {
		return nil, fmt.Errorf("%w: record count %d exceeds capacity %d", ErrCorruptPage, count, capacity)
	}

	own := make([]byte, length)
	copy(own, buf)

	return &LeafPage{
		length:     length,
		descLen:    descLen,
		recordSize: recordSize,
		capacity:   capacity,
		tail:       int(count),
		buf:        own,
	}, nil
}

// ReadFrom reads a leaf page of length L, dimension D at byte offset off of
// r, then parses it via FromBytes. Used by the pager to serve cache misses
// from a generic random-access source (§4.4).
func ReadFrom(r io.ReaderAt, off int64, length, descLen int) (*LeafPage, error) {
	buf := utils.GetBuffer(length)
	defer utils.ReleaseBuffer(buf)

	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, utils.WrapError("reading leaf page", err)
	}
	return FromBytes(length, descLen, buf)
}

// Capacity returns the maximum number of records this page can hold.
func (p *LeafPage) Capacity() int {
	return p.capacity
}

// Len returns the number of records currently stored.
func (p *LeafPage) Len() int {
	return p.tail
}

// Full reports whether the page has no remaining free slot.
func (p *LeafPage) Full() bool {
	return p.tail >= p.capacity
}

// Add appends a record to the page. Returns ErrPageFull if the page has no
// free slot (§4.2, §4.6 — the caller responds by splitting).
func (p *LeafPage) Add(r descriptor.TreeRecord) error {
	if p.Full() {
		return ErrPageFull
	}
	if err := r.Descriptor.Validate(p.descLen); err != nil {
		return err
	}

	slotOffset := DataStart + p.tail*p.recordSize
	if err := descriptor.Encode(r, p.buf[slotOffset:slotOffset+p.recordSize]); err != nil {
		return err
	}

	p.tail++
	binary.BigEndian.PutUint32(p.buf[offsetCount:offsetCount+4], uint32(p.tail))

	return nil
}

// Records returns the stored records, in insertion order.
func (p *LeafPage) Records() ([]descriptor.TreeRecord, error) {
	out := make([]descriptor.TreeRecord, 0, p.tail)
	for i := 0; i < p.tail; i++ {
		off := DataStart + i*p.recordSize
		r, err := descriptor.Decode(p.buf[off:off+p.recordSize], p.descLen)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ContainsDescriptor reports whether any stored record has exactly the
// given descriptor. Linear scan; used only by debug/property tests (§4.2).
func (p *LeafPage) ContainsDescriptor(q descriptor.Descriptor) (bool, error) {
	records, err := p.Records()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if descriptorsEqual(r.Descriptor, q) {
			return true, nil
		}
	}
	return false, nil
}

func descriptorsEqual(a, b descriptor.Descriptor) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Bytes returns the page's raw byte representation, ready to write to disk.
// The returned slice aliases the page's internal buffer and must not be
// retained across further mutation.
func (p *LeafPage) Bytes() []byte {
	return p.buf
}
