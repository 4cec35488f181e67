// Package nodetable implements the dense, wholly in-memory table of
// internal tree nodes and its single-file binary serialization (§4.3).
package nodetable

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/molecularmodelinglab/simsearchserver/internal/utils"
)

// PointerType tags a PagePointer's variant at the byte level (§4, GLOSSARY).
type PointerType uint8

const (
	PointerNode PointerType = 1
	PointerLeaf PointerType = 2
)

// PagePointer is a pure reference to either an internal node or a leaf
// page; it owns neither target.
type PagePointer struct {
	Type  PointerType
	Index uint64
}

func NodeRef(i uint64) PagePointer { return PagePointer{Type: PointerNode, Index: i} }
func LeafRef(i uint64) PagePointer { return PagePointer{Type: PointerLeaf, Index: i} }

func (p PagePointer) IsNode() bool { return p.Type == PointerNode }
func (p PagePointer) IsLeaf() bool { return p.Type == PointerLeaf }

// Node is one internal split node: the axis and value that partition
// records between Left and Right (§3, §4.1, §4.6).
type Node struct {
	Left      PagePointer
	Right     PagePointer
	Axis      uint8
	SplitValue float32
}

// recordSize is the on-disk node width: left(8+1) + right(8+1) + axis(1) +
// value(4) = 23 bytes, plus 4 bytes reserved to match the file format's
// declared 27-byte stride (§4.3, §6 — see the project design notes for why
// the reserved field exists).
const recordSize = 27

const (
	fieldLeftIndex  = 0
	fieldLeftType   = 8
	fieldRightIndex = 9
	fieldRightType  = 17
	fieldAxis       = 18
	fieldValue      = 19
	fieldReserved   = 23
)

// headerSize is the width of the node-file header: an 8-byte big-endian
// "last populated index" (§4, §6).
const headerSize = 8

var byteOrder = binary.BigEndian

func encodeNode(n Node) []byte {
	buf := make([]byte, recordSize)
	byteOrder.PutUint64(buf[fieldLeftIndex:fieldLeftIndex+8], n.Left.Index)
	buf[fieldLeftType] = byte(n.Left.Type)
	byteOrder.PutUint64(buf[fieldRightIndex:fieldRightIndex+8], n.Right.Index)
	buf[fieldRightType] = byte(n.Right.Type)
	buf[fieldAxis] = n.Axis
	byteOrder.PutUint32(buf[fieldValue:fieldValue+4], math.Float32bits(n.SplitValue))
	return buf
}

func decodeNode(buf []byte) Node {
	return Node{
		Left:      PagePointer{Type: PointerType(buf[fieldLeftType]), Index: byteOrder.Uint64(buf[fieldLeftIndex : fieldLeftIndex+8])},
		Right:     PagePointer{Type: PointerType(buf[fieldRightType]), Index: byteOrder.Uint64(buf[fieldRightIndex : fieldRightIndex+8])},
		Axis:      buf[fieldAxis],
		SplitValue: math.Float32frombits(byteOrder.Uint32(buf[fieldValue : fieldValue+4])),
	}
}

// Table is the dense, wholly in-memory store of internal nodes (§4.3). Node
// traversal is the per-query hot path; keeping it in memory avoids a disk
// round trip per descent step.
type Table struct {
	nodes []Node
}

func New() *Table {
	return &Table{}
}

// Add appends node and returns its new index.
func (t *Table) Add(n Node) uint64 {
	t.nodes = append(t.nodes, n)
	return uint64(len(t.nodes) - 1)
}

// Get returns the node at index i.
func (t *Table) Get(i uint64) (Node, error) {
	if i >= uint64(len(t.nodes)) {
		return Node{}, fmt.Errorf("nodetable: index %d out of range (len %d)", i, len(t.nodes))
	}
	return t.nodes[i], nil
}

// Update overwrites the node at index i in place.
func (t *Table) Update(i uint64, n Node) error {
	if i >= uint64(len(t.nodes)) {
		return fmt.Errorf("nodetable: index %d out of range (len %d)", i, len(t.nodes))
	}
	t.nodes[i] = n
	return nil
}

// Len returns the number of stored nodes.
func (t *Table) Len() int {
	return len(t.nodes)
}

// Save serializes the table to path: an 8-byte big-endian "last populated
// index" header, followed by packed 27-byte node records (§4, §6).
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return utils.WrapError("creating node file", err)
	}
	defer f.Close()

	lastIndex := uint64(0)
	if len(t.nodes) > 0 {
		lastIndex = uint64(len(t.nodes) - 1)
	}
	if err := utils.WriteUint64(f, 0, byteOrder, lastIndex); err != nil {
		return utils.WrapError("writing node file header", err)
	}

	for i, n := range t.nodes {
		off := int64(headerSize + i*recordSize)
		if _, err := f.WriteAt(encodeNode(n), off); err != nil {
			return utils.WrapError("writing node record", err)
		}
	}

	return nil
}

// Load reads a node table previously written by Save.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, utils.WrapError("opening node file", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, utils.WrapError("statting node file", err)
	}
	if info.Size() < headerSize {
		return nil, fmt.Errorf("nodetable: file %q too small for header", path)
	}

	body := info.Size() - headerSize
	if body%recordSize != 0 {
		return nil, fmt.Errorf("nodetable: file %q body size %d not a multiple of record size %d", path, body, recordSize)
	}
	count := body / recordSize

	// The header's "last populated index" is read but its value is not
	// checked; the node count is derived from file size. Both agree for a
	// well-formed file written by Save.
	if _, err := utils.ReadUint64(f, 0, byteOrder); err != nil {
		return nil, utils.WrapError("reading node file header", err)
	}

	nodes := make([]Node, 0, count)
	buf := utils.GetBuffer(recordSize)
	defer utils.ReleaseBuffer(buf)
	for i := int64(0); i < count; i++ {
		off := headerSize + i*recordSize
		if _, err := f.ReadAt(buf, off); err != nil {
			return nil, utils.WrapError("reading node record", err)
		}
		nodes = append(nodes, decodeNode(buf))
	}

	return &Table{nodes: nodes}, nil
}
