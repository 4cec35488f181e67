// Package pager implements the LeafPager: disk-backed leaf page storage
// with a bounded, dirty-aware cache (§4.4).
package pager

import (
	"container/list"
	"encoding/binary"
	"fmt"

	"github.com/molecularmodelinglab/simsearchserver/internal/page"
	"github.com/molecularmodelinglab/simsearchserver/internal/utils"
	"github.com/molecularmodelinglab/simsearchserver/internal/writer"
)

// headerSize is the width of the leaf-file header: an 8-byte big-endian
// next-free page index (§4.4).
const headerSize = 8

var byteOrder = binary.BigEndian

// checkInterval is the number of updates between cache-size checks (§4.4,
// "the check counter").
const checkInterval = 1000

// evictFraction is the approximate share of cache entries evicted once the
// ceiling is exceeded (§4.4: "evict ≈10% of entries").
const evictFraction = 0.10

// DefaultCacheCeilingBytes bounds the cache when the caller does not
// specify one explicitly.
const DefaultCacheCeilingBytes = 256 * 1024 * 1024

type cacheEntry struct {
	index uint64
	page  *page.LeafPage
	dirty bool
}

// LeafPager materializes leaf pages from disk on demand, buffers writes,
// and enforces a soft memory ceiling via LRU eviction (§4.4).
type LeafPager struct {
	fw              *writer.FileWriter
	path            string
	pageLength      int
	descLen         int
	nextIndex       uint64
	cacheCeiling    uint64
	updatesSinceChk int

	lru     *list.List               // front = most recently used
	entries map[uint64]*list.Element // index -> node in lru holding *cacheEntry
}

// New creates a fresh, empty leaf file at path.
func New(path string, pageLength, descLen int, cacheCeilingBytes uint64) (*LeafPager, error) {
	fw, err := writer.NewFileWriter(path, writer.ModeTruncate, headerSize)
	if err != nil {
		return nil, utils.WrapError("creating leaf file", err)
	}

	p := &LeafPager{
		fw:           fw,
		path:         path,
		pageLength:   pageLength,
		descLen:      descLen,
		nextIndex:    0,
		cacheCeiling: cacheCeilingBytes,
		lru:          list.New(),
		entries:      make(map[uint64]*list.Element),
	}

	if err := p.writeHeader(); err != nil {
		return nil, err
	}

	return p, nil
}

// Open reopens an existing leaf file, reading the persisted next-free page
// index from its header.
func Open(path string, pageLength, descLen int, cacheCeilingBytes uint64) (*LeafPager, error) {
	fw, err := writer.OpenFileWriter(path)
	if err != nil {
		return nil, utils.WrapError("opening leaf file", err)
	}

	nextIndex, err := utils.ReadUint64(fw, 0, byteOrder)
	if err != nil {
		fw.Close()
		return nil, utils.WrapError("reading leaf file header", err)
	}

	return &LeafPager{
		fw:           fw,
		path:         path,
		pageLength:   pageLength,
		descLen:      descLen,
		nextIndex:    nextIndex,
		cacheCeiling: cacheCeilingBytes,
		lru:          list.New(),
		entries:      make(map[uint64]*list.Element),
	}, nil
}

func (p *LeafPager) writeHeader() error {
	return utils.WriteUint64(p.fw, 0, byteOrder, p.nextIndex)
}

// pageOffset computes the byte offset of page i, guarding the multiplication
// against overflow for pathologically large page indices or page lengths
// (§4.4).
func (p *LeafPager) pageOffset(i uint64) (uint64, error) {
	span, err := utils.SafeMultiply(i, uint64(p.pageLength))
	if err != nil {
		return 0, utils.WrapError("computing leaf page offset", err)
	}
	return uint64(headerSize) + span, nil
}

// Append writes a new leaf page, returning its page index. The page is kept
// in cache; the on-disk copy is written immediately (§4.4).
func (p *LeafPager) Append(lp *page.LeafPage) (uint64, error) {
	idx := p.nextIndex
	addr, err := p.fw.Allocate(uint64(p.pageLength))
	if err != nil {
		return 0, utils.WrapError("allocating leaf page", err)
	}
	expected, err := p.pageOffset(idx)
	if err != nil {
		return 0, err
	}
	if addr != expected {
		return 0, fmt.Errorf("pager: allocator offset %d does not match expected page offset %d", addr, expected)
	}

	if err := p.fw.WriteAtAddress(lp.Bytes(), addr); err != nil {
		return 0, utils.WrapError("writing leaf page", err)
	}

	p.nextIndex++
	if err := p.writeHeader(); err != nil {
		return 0, err
	}

	p.putCache(idx, lp, false)

	return idx, nil
}

// Get returns the leaf page at index i, serving from cache if present.
// On a cache miss it reads through from disk without populating the cache,
// matching the reference implementation's choice not to pollute the cache
// during query scans (§4.4).
func (p *LeafPager) Get(i uint64) (*page.LeafPage, error) {
	if elem, ok := p.entries[i]; ok {
		p.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).page, nil
	}

	if i >= p.nextIndex {
		return nil, fmt.Errorf("pager: page index %d out of range (next free %d)", i, p.nextIndex)
	}

	off, err := p.pageOffset(i)
	if err != nil {
		return nil, err
	}
	return page.ReadFrom(p.fw, int64(off), p.pageLength, p.descLen)
}

// Update replaces the cached entry for page i, marking it dirty. Every
// checkInterval updates, the cache's total byte size is measured; if it
// exceeds the ceiling, the least-recently-used ~10% of entries are
// evicted, writing any dirty ones back to disk first (§4.4).
func (p *LeafPager) Update(i uint64, lp *page.LeafPage) error {
	if i >= p.nextIndex {
		return fmt.Errorf("pager: page index %d out of range (next free %d)", i, p.nextIndex)
	}

	p.putCache(i, lp, true)

	p.updatesSinceChk++
	if p.updatesSinceChk >= checkInterval {
		p.updatesSinceChk = 0
		if err := p.evictIfOverCeiling(); err != nil {
			return err
		}
	}

	return nil
}

func (p *LeafPager) putCache(i uint64, lp *page.LeafPage, dirty bool) {
	if elem, ok := p.entries[i]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.page = lp
		entry.dirty = entry.dirty || dirty
		p.lru.MoveToFront(elem)
		return
	}

	entry := &cacheEntry{index: i, page: lp, dirty: dirty}
	elem := p.lru.PushFront(entry)
	p.entries[i] = elem
}

func (p *LeafPager) cacheBytes() uint64 {
	return uint64(len(p.entries)) * uint64(p.pageLength)
}

func (p *LeafPager) evictIfOverCeiling() error {
	if p.cacheBytes() <= p.cacheCeiling {
		return nil
	}

	// A ceiling of 0 is a pass-through cache: evict everything over the
	// ceiling, not just the usual ~10% window, so dirty pages don't
	// accumulate in memory between check intervals.
	target := int(float64(len(p.entries)) * evictFraction)
	if p.cacheCeiling == 0 {
		target = len(p.entries)
	}
	if target < 1 {
		target = 1
	}

	for n := 0; n < target; n++ {
		back := p.lru.Back()
		if back == nil {
			break
		}
		entry := back.Value.(*cacheEntry)
		if entry.dirty {
			if err := p.writeThrough(entry.index, entry.page); err != nil {
				return err
			}
		}
		p.lru.Remove(back)
		delete(p.entries, entry.index)
	}

	return nil
}

func (p *LeafPager) writeThrough(i uint64, lp *page.LeafPage) error {
	off, err := p.pageOffset(i)
	if err != nil {
		return err
	}
	if err := p.fw.WriteAtAddress(lp.Bytes(), off); err != nil {
		return utils.WrapError("flushing leaf page", err)
	}
	return nil
}

// Flush writes back all dirty pages and clears the cache (§4.4).
func (p *LeafPager) Flush() error {
	for _, elem := range p.entries {
		entry := elem.Value.(*cacheEntry)
		if entry.dirty {
			if err := p.writeThrough(entry.index, entry.page); err != nil {
				return err
			}
		}
	}
	p.lru = list.New()
	p.entries = make(map[uint64]*list.Element)
	return nil
}

// FlushKeys flushes and evicts only the given page indices (§4.4, partial flush).
func (p *LeafPager) FlushKeys(keys []uint64) error {
	for _, k := range keys {
		elem, ok := p.entries[k]
		if !ok {
			continue
		}
		entry := elem.Value.(*cacheEntry)
		if entry.dirty {
			if err := p.writeThrough(entry.index, entry.page); err != nil {
				return err
			}
		}
		p.lru.Remove(elem)
		delete(p.entries, k)
	}
	return nil
}

// NextIndex returns the page index that the next Append would assign.
func (p *LeafPager) NextIndex() uint64 {
	return p.nextIndex
}

// Close closes the underlying file. When flush is true, dirty cached pages
// are written back first; when false, they are discarded unwritten. The
// caller decides which: kdtree.Tree passes through its own WithFlushOnClose
// setting so pager and node-table persistence stay in lockstep (§4.4, §9
// flush-on-drop).
func (p *LeafPager) Close(flush bool) error {
	if flush {
		if err := p.Flush(); err != nil {
			return err
		}
	}
	return p.fw.Close()
}
