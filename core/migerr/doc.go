// Package migerr defines the error taxonomy of the migrator.
//
// Every failure the pipeline can produce is classified by one of the sentinel
// errors declared here. Components return either a bare sentinel wrapped with
// fmt.Errorf or a *Error that carries the stage and work item the failure
// belongs to.
//
// # Local and fatal errors
//
// Errors fall into two groups. Local errors (an undecodable identifier, an
// unmapped identifier, an unresolved path, a file copy failure) are recorded in
// the stage report and the stage continues. Fatal errors (an identifier
// conflict, an unsupported schema, a corrupt checkpoint, a configuration
// fingerprint mismatch) stop the run before the current unit is marked
// complete. IsFatal implements this classification.
//
// # Usage
//
//	err := migerr.New("PathMigration", "file:data/jellyfin.db", migerr.ErrFileIO, cause)
//	if errors.Is(err, migerr.ErrFileIO) {
//	    // record and continue
//	}
package migerr
