package kdtree

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/molecularmodelinglab/simsearchserver/internal/contentdb"
	"github.com/molecularmodelinglab/simsearchserver/internal/descriptor"
	"github.com/molecularmodelinglab/simsearchserver/internal/nodetable"
	"github.com/molecularmodelinglab/simsearchserver/internal/page"
	"github.com/molecularmodelinglab/simsearchserver/internal/pager"
)

// CompoundRecord is the external view of one stored item: SMILES,
// identifier, and descriptor. It is carried only in and out of the public
// API; internally only the TreeRecord (index + descriptor) lives in a leaf
// page (§3).
type CompoundRecord struct {
	Smiles     string
	Identifier string
	Descriptor descriptor.Descriptor
}

// Tree composes the node table, leaf pager, and content database into the
// disk-backed k-d tree described in §3–§4.
type Tree struct {
	dir  string
	cfg  Config
	opts treeOptions

	nodes   *nodetable.Table
	pager   *pager.LeafPager
	content *contentdb.DB

	root nodetable.PagePointer

	buildLog io.Writer
}

// Create initializes a new tree directory: config.yaml, an empty node
// table, a pager seeded with one empty leaf page 0, and an empty content
// database. Fails with ErrDirectoryExists if the directory is already
// present (§4.8).
func Create(cfg Config, opts ...Option) (*Tree, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.Directory); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrDirectoryExists, cfg.Directory)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("kdtree: statting %s: %w", cfg.Directory, err)
	}

	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("kdtree: creating directory %s: %w", cfg.Directory, err)
	}

	options := defaultTreeOptions()
	for _, opt := range opts {
		opt(&options)
	}

	nodes := nodetable.New()

	leafPager, err := pager.New(filepath.Join(cfg.Directory, recordFileName), cfg.RecordPageLength, cfg.DescLength, options.cacheCeiling)
	if err != nil {
		return nil, err
	}

	content, err := contentdb.New(filepath.Join(cfg.Directory, contentFileName))
	if err != nil {
		return nil, err
	}

	emptyLeaf, err := page.New(cfg.RecordPageLength, cfg.DescLength)
	if err != nil {
		return nil, err
	}
	if _, err := leafPager.Append(emptyLeaf); err != nil {
		return nil, err
	}

	if err := saveConfig(cfg); err != nil {
		return nil, err
	}

	if err := nodes.Save(filepath.Join(cfg.Directory, nodeFileName)); err != nil {
		return nil, err
	}

	return &Tree{
		dir:     cfg.Directory,
		cfg:     cfg,
		opts:    options,
		nodes:   nodes,
		pager:   leafPager,
		content: content,
		root:    nodetable.LeafRef(0),
	}, nil
}

// ForceCreate removes the target directory if present, then Create.
func ForceCreate(cfg Config, opts ...Option) (*Tree, error) {
	if cfg.Directory != "" {
		if err := os.RemoveAll(cfg.Directory); err != nil {
			return nil, fmt.Errorf("kdtree: removing existing directory %s: %w", cfg.Directory, err)
		}
	}
	return Create(cfg, opts...)
}

// Open loads an existing tree: config.yaml, the full node table, and
// read/write handles to the leaf pager and content database (§4.8).
func Open(dir string, opts ...Option) (*Tree, error) {
	cfg, err := loadConfig(dir)
	if err != nil {
		return nil, err
	}
	cfg.Directory = dir

	options := defaultTreeOptions()
	for _, opt := range opts {
		opt(&options)
	}

	nodes, err := nodetable.Load(filepath.Join(dir, nodeFileName))
	if err != nil {
		return nil, err
	}

	leafPager, err := pager.Open(filepath.Join(dir, recordFileName), cfg.RecordPageLength, cfg.DescLength, options.cacheCeiling)
	if err != nil {
		return nil, err
	}

	content, err := contentdb.Open(filepath.Join(dir, contentFileName))
	if err != nil {
		return nil, err
	}

	// The root transitions from Leaf(0) to Node(n) exactly once, the first
	// time the root leaf overflows (§4.6) — and since that is the very
	// first node ever added to an empty table, n is always 0. The root
	// never reverts to a leaf afterward, so node index 0 is the root for
	// the lifetime of a non-empty tree; no separate root pointer needs
	// persisting.
	root := nodetable.LeafRef(0)
	if nodes.Len() > 0 {
		root = nodetable.NodeRef(0)
	}

	return &Tree{
		dir:     dir,
		cfg:     cfg,
		opts:    options,
		nodes:   nodes,
		pager:   leafPager,
		content: content,
		root:    root,
	}, nil
}

// SetBuildLog sets a writer to receive one line per ingested or rejected
// record: an ingested record's line carries its index and outcome; a record
// rejected by descriptor validation or by the content database gets a line
// carrying the error, with no index. nil (the default) disables
// logging. This is a supplemental feature beyond spec.md §4.6, grounded on
// the original per-line ingest logging (see SPEC_FULL.md).
func (t *Tree) SetBuildLog(w io.Writer) {
	t.buildLog = w
}

func (t *Tree) logf(format string, args ...any) {
	if t.buildLog == nil {
		return
	}
	fmt.Fprintf(t.buildLog, format+"\n", args...)
}

// Config returns the tree's configuration.
func (t *Tree) Config() Config {
	return t.cfg
}

// NodeCount returns the number of internal nodes in the node table.
func (t *Tree) NodeCount() int {
	return t.nodes.Len()
}

// LeafPageCount returns the number of allocated leaf pages.
func (t *Tree) LeafPageCount() uint64 {
	return t.pager.NextIndex()
}

// RecordCount returns the number of entries in the content database.
func (t *Tree) RecordCount() uint64 {
	return t.content.Count()
}

// Flush persists the node table and flushes the leaf pager (§4.8).
func (t *Tree) Flush() error {
	if err := t.nodes.Save(filepath.Join(t.dir, nodeFileName)); err != nil {
		return err
	}
	return t.pager.Flush()
}

// Close releases file handles, flushing first if WithFlushOnClose was set.
// When it was not set, Close writes neither the node table nor the pager's
// dirty cached pages; leaf pages already written by Append or by cache
// eviction stay on disk as they are (§4.4, §4.6, §9).
func (t *Tree) Close() error {
	if t.opts.flushOnClose {
		if err := t.Flush(); err != nil {
			return err
		}
	}
	if err := t.pager.Close(t.opts.flushOnClose); err != nil {
		return err
	}
	return t.content.Close()
}

// sortDescriptorValues returns a sorted copy of vals for median computation.
func sortDescriptorValues(vals []float32) []float32 {
	out := make([]float32, len(vals))
	copy(out, vals)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func median(sortedVals []float32) float32 {
	n := len(sortedVals)
	if n%2 == 1 {
		return sortedVals[n/2]
	}
	return (sortedVals[n/2-1] + sortedVals[n/2]) / 2
}
