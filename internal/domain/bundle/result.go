package bundle

import "errors"

var (
	// ErrMissingSource means a category directory is absent, unreadable or empty.
	ErrMissingSource = errors.New("missing source")
	// ErrUnresolvedAsset means a candidate could not be loaded and was skipped.
	ErrUnresolvedAsset = errors.New("unresolved asset")
	// ErrBuildFailure means the bundle builder reported failure for a batch.
	ErrBuildFailure = errors.New("build failure")
	// ErrManifestCorrupt means an existing manifest could not be parsed.
	ErrManifestCorrupt = errors.New("manifest corrupt")
	// ErrDirectoryUnwritable means an output directory could not be created.
	ErrDirectoryUnwritable = errors.New("directory unwritable")
	// ErrUnknownMode is returned for export modes other than per_asset and merged.
	ErrUnknownMode = errors.New("unknown export mode")
)

// RunState is the state of an export run.
type RunState int

const (
	// StateIdle is the state before any category has been processed.
	StateIdle RunState = iota
	// StateRunning is the state while a category is processed.
	StateRunning
	// StateDone is the state after every requested category has been visited.
	StateDone
	// StateAborted is the state after an unrecoverable error or cancellation.
	StateAborted
)

// String returns a human-readable state name.
func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result is the outcome of exporting one category for one platform.
type Result struct {
	// Platform is the platform name.
	Platform string
	// Category is the category name.
	Category string
	// Mode is the category's export mode.
	Mode Mode
	// Artifacts are the bundle files written, in build order.
	Artifacts []string
	// Entry is the upserted manifest entry; set only for merged categories.
	Entry *Entry
	// Skipped lists assets dropped as unresolved.
	Skipped []string
	// Err is the category-level failure, if any.
	Err error
}

// Failed reports whether the category produced no usable output because of an error.
func (r *Result) Failed() bool {
	return r.Err != nil && !errors.Is(r.Err, ErrMissingSource)
}
