// Package checkpoint persists pipeline progress so an interrupted migration
// resumes where it stopped.
//
// The state lives in two files next to each other:
//
//   - <path>: a JSON snapshot wrapped in an envelope carrying the format
//     version and a SHA-256 of the state bytes.
//   - <path>.journal: an append-only JSON lines log of completed work items
//     and table cursors recorded since the last snapshot.
//
// Every MarkDone and SetCursor appends one journal record and fsyncs it before
// returning. Stage transitions write a new snapshot (temp file, fsync, rename)
// and truncate the journal. On load the journal is replayed over the snapshot;
// a torn final line from a crash mid-append is discarded, anything else that
// does not parse is reported as migerr.ErrCheckpointCorruption.
//
// A gofrs/flock lock on <path>.lock keeps a second process from driving the
// same checkpoint.
package checkpoint
