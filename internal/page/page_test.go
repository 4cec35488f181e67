package page

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/molecularmodelinglab/simsearchserver/internal/descriptor"
	mockio "github.com/molecularmodelinglab/simsearchserver/internal/testing"
)

func TestNew(t *testing.T) {
	p, err := New(64, 2)
	require.NoError(t, err)
	require.Equal(t, 0, p.Len())
	require.False(t, p.Full())
	require.Greater(t, p.Capacity(), 0)
}

func TestNew_TooSmallForHeader(t *testing.T) {
	_, err := New(4, 2)
	require.Error(t, err)
}

func TestLeafCapacity_ScenarioD(t *testing.T) {
	// D=1, recordSize = 8 + 4*1 = 12. Page length chosen so capacity is
	// exactly 4, matching scenario D's split-boundary setup.
	recordSize := descriptor.Size(1)
	length := DataStart + 4*recordSize
	p, err := New(length, 1)
	require.NoError(t, err)
	require.Equal(t, 4, p.Capacity())
}

func TestAdd_AndRecords(t *testing.T) {
	p, err := New(128, 2)
	require.NoError(t, err)

	records := []descriptor.TreeRecord{
		{Index: 1, Descriptor: descriptor.Descriptor{1, 2}},
		{Index: 2, Descriptor: descriptor.Descriptor{3, 4}},
		{Index: 3, Descriptor: descriptor.Descriptor{5, 6}},
	}
	for _, r := range records {
		require.NoError(t, p.Add(r))
	}

	require.Equal(t, 3, p.Len())

	got, err := p.Records()
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestAdd_WrongDimension(t *testing.T) {
	p, err := New(128, 2)
	require.NoError(t, err)

	err = p.Add(descriptor.TreeRecord{Index: 1, Descriptor: descriptor.Descriptor{1, 2, 3}})
	require.Error(t, err)
	require.True(t, errors.Is(err, descriptor.ErrDimensionMismatch))
}

func TestAdd_PageFull(t *testing.T) {
	recordSize := descriptor.Size(1)
	length := DataStart + 2*recordSize
	p, err := New(length, 1)
	require.NoError(t, err)

	require.NoError(t, p.Add(descriptor.TreeRecord{Index: 1, Descriptor: descriptor.Descriptor{1}}))
	require.NoError(t, p.Add(descriptor.TreeRecord{Index: 2, Descriptor: descriptor.Descriptor{2}}))
	require.True(t, p.Full())

	err = p.Add(descriptor.TreeRecord{Index: 3, Descriptor: descriptor.Descriptor{3}})
	require.ErrorIs(t, err, ErrPageFull)
}

func TestContainsDescriptor(t *testing.T) {
	p, err := New(128, 2)
	require.NoError(t, err)
	require.NoError(t, p.Add(descriptor.TreeRecord{Index: 1, Descriptor: descriptor.Descriptor{1, 2}}))

	ok, err := p.ContainsDescriptor(descriptor.Descriptor{1, 2})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.ContainsDescriptor(descriptor.Descriptor{9, 9})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFromBytes_RoundTrip(t *testing.T) {
	p, err := New(128, 3)
	require.NoError(t, err)

	records := []descriptor.TreeRecord{
		{Index: 10, Descriptor: descriptor.Descriptor{0.1, 0.2, 0.3}},
		{Index: 20, Descriptor: descriptor.Descriptor{0.4, 0.5, 0.6}},
	}
	for _, r := range records {
		require.NoError(t, p.Add(r))
	}

	p2, err := FromBytes(128, 3, p.Bytes())
	require.NoError(t, err)
	require.Equal(t, p.Len(), p2.Len())

	got, err := p2.Records()
	require.NoError(t, err)
	require.Equal(t, records, got)
}

func TestFromBytes_WrongLength(t *testing.T) {
	_, err := FromBytes(128, 3, make([]byte, 64))
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestFromBytes_WrongTypeTag(t *testing.T) {
	buf := make([]byte, 64)
	buf[offsetTag] = 9
	_, err := FromBytes(64, 2, buf)
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestFromBytes_CountExceedsCapacity(t *testing.T) {
	recordSize := descriptor.Size(1)
	length := DataStart + 2*recordSize
	buf := make([]byte, length)
	buf[offsetTag] = TypeTag
	buf[offsetCount+3] = 5 // claims 5 records, capacity is 2

	_, err := FromBytes(length, 1, buf)
	require.ErrorIs(t, err, ErrCorruptPage)
}

func TestFromBytes_DoesNotAliasInput(t *testing.T) {
	p, err := New(64, 1)
	require.NoError(t, err)
	require.NoError(t, p.Add(descriptor.TreeRecord{Index: 1, Descriptor: descriptor.Descriptor{1}}))

	src := p.Bytes()
	p2, err := FromBytes(64, 1, src)
	require.NoError(t, err)

	src[offsetTag] = 0
	require.Equal(t, byte(TypeTag), p2.Bytes()[offsetTag])
}

func TestReadFrom_RoundTrip(t *testing.T) {
	p, err := New(64, 1)
	require.NoError(t, err)
	require.NoError(t, p.Add(descriptor.TreeRecord{Index: 9, Descriptor: descriptor.Descriptor{2.5}}))

	padded := make([]byte, 128)
	copy(padded[64:], p.Bytes())
	reader := mockio.NewMockReaderAt(padded)

	got, err := ReadFrom(reader, 64, 64, 1)
	require.NoError(t, err)
	records, err := got.Records()
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, uint64(9), records[0].Index)
}

func TestReadFrom_ShortRead(t *testing.T) {
	reader := mockio.NewMockReaderAt(make([]byte, 32))

	_, err := ReadFrom(reader, 0, 64, 1)
	require.Error(t, err)
}

func BenchmarkAdd(b *testing.B) {
	p, err := New(1024*64, 8)
	require.NoError(b, err)
	r := descriptor.TreeRecord{Index: 1, Descriptor: descriptor.Descriptor{1, 2, 3, 4, 5, 6, 7, 8}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if p.Full() {
			b.StopTimer()
			p, _ = New(1024*64, 8)
			b.StartTimer()
		}
		_ = p.Add(r)
	}
}
