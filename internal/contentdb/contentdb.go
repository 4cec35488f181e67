// Package contentdb implements the append-only, fixed-record compound
// store: each tree record's index maps to a (SMILES, identifier) pair
// recovered at query time (§4.5).
package contentdb

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/molecularmodelinglab/simsearchserver/internal/utils"
	"github.com/molecularmodelinglab/simsearchserver/internal/writer"
)

// Field widths, in bytes. A vestigial 8-byte zero field precedes the SMILES
// string in every entry; later formats might have used it for a per-entry
// flag or checksum, but the reference format never populated it. It is
// preserved here since the 138-byte stride is load-bearing (§4.5).
const (
	reservedWidth   = 8
	smilesWidth     = utils.MaxSmilesLength
	identifierWidth = utils.MaxIdentifierLength

	entrySize = reservedWidth + smilesWidth + identifierWidth // 138

	countHeaderSize = 8
)

// ErrPayloadTooLarge is returned by Append when smiles or identifier
// exceeds its reserved field width.
var ErrPayloadTooLarge = errors.New("contentdb: payload exceeds reserved field width")

// countByteOrder is little-endian: the one exception to the big-endian
// convention used everywhere else in the on-disk format (§4.5).
var countByteOrder = binary.LittleEndian

// DB is the append-only compound store backing a tree's ContentDB.
type DB struct {
	fw    *writer.FileWriter
	count uint64
}

// New creates an empty content database at path.
func New(path string) (*DB, error) {
	fw, err := writer.NewFileWriter(path, writer.ModeTruncate, countHeaderSize)
	if err != nil {
		return nil, utils.WrapError("creating content db", err)
	}

	db := &DB{fw: fw, count: 0}
	if err := db.writeHeader(); err != nil {
		return nil, err
	}
	return db, nil
}

// Open reopens an existing content database, reading its persisted count.
func Open(path string) (*DB, error) {
	fw, err := writer.OpenFileWriter(path)
	if err != nil {
		return nil, utils.WrapError("opening content db", err)
	}

	count, err := utils.ReadUint64(fw, 0, countByteOrder)
	if err != nil {
		fw.Close()
		return nil, utils.WrapError("reading content db header", err)
	}

	return &DB{fw: fw, count: count}, nil
}

func (db *DB) writeHeader() error {
	return utils.WriteUint64(db.fw, 0, countByteOrder, db.count)
}

// entryOffset computes the byte offset of entry index, guarding the
// multiplication against overflow for pathologically large indices (§4.5).
func entryOffset(index uint64) (uint64, error) {
	span, err := utils.SafeMultiply(index, entrySize)
	if err != nil {
		return 0, utils.WrapError("computing content db entry offset", err)
	}
	return countHeaderSize + span, nil
}

// Append stores (smiles, identifier) in the next free slot, returning its
// index. Fails with ErrPayloadTooLarge if either field exceeds its
// reserved width (§4.5).
func (db *DB) Append(smiles, identifier string) (uint64, error) {
	if err := utils.ValidateBufferSize(uint64(len(smiles)), smilesWidth, "smiles"); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}
	if err := utils.ValidateBufferSize(uint64(len(identifier)), identifierWidth, "identifier"); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}

	buf := make([]byte, entrySize)
	copy(buf[reservedWidth:reservedWidth+smilesWidth], smiles)
	copy(buf[reservedWidth+smilesWidth:], identifier)

	index := db.count
	addr, err := db.fw.Allocate(entrySize)
	if err != nil {
		return 0, utils.WrapError("allocating content db entry", err)
	}
	expected, err := entryOffset(index)
	if err != nil {
		return 0, err
	}
	if addr != expected {
		return 0, fmt.Errorf("contentdb: allocator offset %d does not match expected entry offset %d", addr, expected)
	}

	if err := db.fw.WriteAtAddress(buf, addr); err != nil {
		return 0, utils.WrapError("writing content db entry", err)
	}

	db.count++
	if err := db.writeHeader(); err != nil {
		return 0, err
	}

	return index, nil
}

// Get reads back the (smiles, identifier) pair stored at index.
func (db *DB) Get(index uint64) (smiles string, identifier string, err error) {
	if index >= db.count {
		return "", "", fmt.Errorf("contentdb: index %d out of range (count %d)", index, db.count)
	}

	off, err := entryOffset(index)
	if err != nil {
		return "", "", err
	}

	buf := make([]byte, entrySize)
	if _, err := db.fw.ReadAt(buf, int64(off)); err != nil {
		return "", "", utils.WrapError("reading content db entry", err)
	}

	smiles = trimTrailingZeros(buf[reservedWidth : reservedWidth+smilesWidth])
	identifier = trimTrailingZeros(buf[reservedWidth+smilesWidth:])
	return smiles, identifier, nil
}

func trimTrailingZeros(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// Count returns the number of stored entries.
func (db *DB) Count() uint64 {
	return db.count
}

// Close closes the underlying file.
func (db *DB) Close() error {
	return db.fw.Close()
}
