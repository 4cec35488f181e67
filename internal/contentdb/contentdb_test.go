package contentdb

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppendAndGet(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "content.bin"))
	require.NoError(t, err)

	idx, err := db.Append("CCO", "ID-001")
	require.NoError(t, err)
	require.Equal(t, uint64(0), idx)
	require.Equal(t, uint64(1), db.Count())

	smiles, identifier, err := db.Get(idx)
	require.NoError(t, err)
	require.Equal(t, "CCO", smiles)
	require.Equal(t, "ID-001", identifier)
}

func TestAppend_SequentialIndices(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "content.bin"))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		idx, err := db.Append("C", "X")
		require.NoError(t, err)
		require.Equal(t, uint64(i), idx)
	}
	require.Equal(t, uint64(5), db.Count())
}

func TestAppend_PayloadTooLarge(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "content.bin"))
	require.NoError(t, err)

	_, err = db.Append(strings.Repeat("C", smilesWidth+1), "ID")
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = db.Append("CCO", strings.Repeat("X", identifierWidth+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	require.Equal(t, uint64(0), db.Count(), "a rejected append must not advance count")
}

func TestAppend_EmptyFieldRejected(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "content.bin"))
	require.NoError(t, err)

	_, err = db.Append("", "ID")
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = db.Append("CCO", "")
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	require.Equal(t, uint64(0), db.Count(), "a rejected append must not advance count")
}

func TestAppend_ExactWidthBoundary(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "content.bin"))
	require.NoError(t, err)

	smiles := strings.Repeat("C", smilesWidth)
	identifier := strings.Repeat("X", identifierWidth)

	idx, err := db.Append(smiles, identifier)
	require.NoError(t, err)

	gotSmiles, gotIdentifier, err := db.Get(idx)
	require.NoError(t, err)
	require.Equal(t, smiles, gotSmiles)
	require.Equal(t, identifier, gotIdentifier)
}

func TestGet_OutOfRange(t *testing.T) {
	db, err := New(filepath.Join(t.TempDir(), "content.bin"))
	require.NoError(t, err)

	_, _, err = db.Get(0)
	require.Error(t, err)
}

func TestEntrySize_Is138Bytes(t *testing.T) {
	require.Equal(t, 138, entrySize)
}

func TestOpen_ResumesCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.bin")

	db, err := New(path)
	require.NoError(t, err)
	_, err = db.Append("CCO", "ID-001")
	require.NoError(t, err)
	_, err = db.Append("CCN", "ID-002")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, uint64(2), reopened.Count())

	smiles, identifier, err := reopened.Get(1)
	require.NoError(t, err)
	require.Equal(t, "CCN", smiles)
	require.Equal(t, "ID-002", identifier)

	idx, err := reopened.Append("CCC", "ID-003")
	require.NoError(t, err)
	require.Equal(t, uint64(2), idx)
}

func TestCountHeader_LittleEndian(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.bin")
	db, err := New(path)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := db.Append("C", "X")
		require.NoError(t, err)
	}

	header := make([]byte, countHeaderSize)
	_, err = db.fw.ReadAt(header, 0)
	require.NoError(t, err)
	require.Equal(t, []byte{3, 0, 0, 0, 0, 0, 0, 0}, header)
}
