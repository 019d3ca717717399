package migerr

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the migration error taxonomy.
var (
	// ErrInvalidIdentifierEncoding indicates bytes or text that are not a valid identifier.
	ErrInvalidIdentifierEncoding = errors.New("invalid identifier encoding")

	// ErrIdConflict indicates one old identifier was registered with two different new identifiers.
	ErrIdConflict = errors.New("identifier conflict")

	// ErrUnmappedIdentifier indicates a reference to an identifier that was never registered.
	ErrUnmappedIdentifier = errors.New("unmapped identifier")

	// ErrPathUnresolved indicates an absolute path that no rule matched.
	ErrPathUnresolved = errors.New("path unresolved")

	// ErrUnsupportedSchema indicates a database that matches no known schema generation.
	ErrUnsupportedSchema = errors.New("unsupported schema")

	// ErrFileIO indicates a copy, rename, stat or write failure on a single file.
	ErrFileIO = errors.New("file i/o error")

	// ErrCheckpointCorruption indicates an unreadable or inconsistent checkpoint file.
	ErrCheckpointCorruption = errors.New("checkpoint corrupted")

	// ErrConfigFingerprintMismatch indicates a resume against a changed configuration.
	ErrConfigFingerprintMismatch = errors.New("configuration changed since checkpoint was created")

	// ErrStageOrder indicates a stage was entered before its predecessor completed.
	ErrStageOrder = errors.New("stage entered out of order")

	// ErrCheckpointLocked indicates another process holds the checkpoint lock.
	ErrCheckpointLocked = errors.New("checkpoint is locked by another process")
)

var fatalKinds = []error{
	ErrIdConflict,
	ErrUnsupportedSchema,
	ErrCheckpointCorruption,
	ErrConfigFingerprintMismatch,
	ErrStageOrder,
	ErrCheckpointLocked,
	context.Canceled,
	context.DeadlineExceeded,
}

// Error attaches the stage and work item to a classified failure.
type Error struct {
	// Stage is the pipeline stage the failure happened in.
	Stage string
	// Item is the work item key, empty for stage-level failures.
	Item string
	// Kind is one of the sentinel errors of this package.
	Kind error
	// Err is the underlying cause, may be nil.
	Err error
}

// New builds an *Error.
func New(stage, item string, kind, cause error) *Error {
	return &Error{Stage: stage, Item: item, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	prefix := e.Stage
	if e.Item != "" {
		prefix = fmt.Sprintf("%s [%s]", e.Stage, e.Item)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", prefix, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

type fatalError struct {
	err error
}

func (f *fatalError) Error() string { return f.err.Error() }
func (f *fatalError) Unwrap() error { return f.err }

// Fatal marks an otherwise local error as fatal, used when configuration asks
// to abort on the first failure of a kind.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err must stop the run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var f *fatalError
	if errors.As(err, &f) {
		return true
	}
	for _, kind := range fatalKinds {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// KindOf returns the taxonomy sentinel err belongs to, or nil when err is unclassified.
func KindOf(err error) error {
	var me *Error
	if errors.As(err, &me) && me.Kind != nil {
		return me.Kind
	}
	for _, kind := range []error{
		ErrInvalidIdentifierEncoding, ErrIdConflict, ErrUnmappedIdentifier, ErrPathUnresolved,
		ErrUnsupportedSchema, ErrFileIO, ErrCheckpointCorruption, ErrConfigFingerprintMismatch,
		ErrStageOrder, ErrCheckpointLocked,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
