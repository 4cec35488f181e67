package kdtree

import "github.com/molecularmodelinglab/simsearchserver/internal/pager"

// Option configures a Tree at Create/ForceCreate/Open time, following the
// functional-options pattern.
type Option func(*treeOptions)

type treeOptions struct {
	flushOnClose bool
	cacheCeiling uint64
}

func defaultTreeOptions() treeOptions {
	return treeOptions{
		flushOnClose: false,
		cacheCeiling: pager.DefaultCacheCeilingBytes,
	}
}

// WithFlushOnClose causes Tree.Close to call Flush before releasing file
// handles. Default false, matching the reference implementation's
// behavior of not flushing on drop (§9 "Flush-on-drop").
func WithFlushOnClose(enabled bool) Option {
	return func(o *treeOptions) {
		o.flushOnClose = enabled
	}
}

// WithCacheCeiling sets the leaf pager's soft memory ceiling, in bytes
// (§4.4).
func WithCacheCeiling(bytes uint64) Option {
	return func(o *treeOptions) {
		o.cacheCeiling = bytes
	}
}
