// Package xrefserr defines the typed error kinds of spec.md §7,
// generalized from the teacher's internal/errors.IndexingError (same
// Type/Operation/Underlying shape, renamed to this domain).
package xrefserr

import "fmt"

// Kind classifies why an operation failed.
type Kind string

const (
	// KindLoadFailure: a FileMap open failed. Local: mark the file for
	// re-index, return an empty result to the query in flight.
	KindLoadFailure Kind = "load_failure"
	// KindStaleSource: a source file was modified on disk since its
	// persisted mtime. Local: enqueue it dirty.
	KindStaleSource Kind = "stale_source"
	// KindSupersededJob: a job's result arrived after a newer job for the
	// same source key took over. Local: drop the result silently.
	KindSupersededJob Kind = "superseded_job"
	// KindCorruptPersistence: sources.rct/project.rct failed to parse at
	// startup. Degrade to an empty project and trigger a full re-index.
	KindCorruptPersistence Kind = "corrupt_persistence"
	// KindMissingFileID: a query referenced an unknown FileID. Not an
	// error condition by itself; return an empty result.
	KindMissingFileID Kind = "missing_file_id"
	// KindWatcherFailure: registering a filesystem watch failed. Surfaced
	// to the user as a warning; the project keeps running without it.
	KindWatcherFailure Kind = "watcher_failure"
)

// Error wraps an underlying failure with the operation and file it
// occurred against.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("xref: %s: %s (%s): %v", e.Kind, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("xref: %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// WithPath attaches the file path an error occurred against.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// Fatal reports whether a Kind aborts the process. Per spec.md §7, no
// error kind here is ever fatal — only Project.Init() returning an error
// aborts project startup, and that's a plain error, not one of these
// kinds.
func Fatal(Kind) bool { return false }
