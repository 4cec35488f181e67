package kdtree

import "errors"

// Sentinel errors surfaced by the public API (§7). Component-level errors
// (ErrPageFull, ErrCorruptPage from internal/page; ErrPayloadTooLarge from
// internal/contentdb; ErrDimensionMismatch from internal/descriptor) are
// wrapped into these or returned as-is where the distinction adds nothing
// for the caller.
var (
	// ErrDirectoryExists is returned by Create when the target directory
	// already exists; the caller chooses between ForceCreate and failing.
	ErrDirectoryExists = errors.New("kdtree: directory already exists")

	// ErrConfigMissing is returned by Open when config.yaml is absent.
	ErrConfigMissing = errors.New("kdtree: config.yaml missing")

	// ErrConfigMalformed is returned by Open when config.yaml cannot be parsed.
	ErrConfigMalformed = errors.New("kdtree: config.yaml malformed")
)
