// Package dbupdate rewrites path and identifier columns of Jellyfin SQLite
// databases.
//
// Tables are walked in rowid order in batches. Each batch runs in its own
// transaction and, once committed, its last rowid is reported to a Tracker so
// an interrupted run resumes at the next batch instead of the start of the
// table.
//
// Three passes exist:
//
//   - UpdatePaths rewrites plain path columns, JSON columns and Jellyfin image
//     columns with a paths.StringFunc.
//   - UpdateIDs rewrites identifier columns through an ids.Registry. The
//     stored form (binary, hex, dashed, plain or ancestor order) is kept. A
//     rewrite that collides with a unique constraint removes the older
//     duplicate row.
//   - SyncDates aligns file modification times with the recorded
//     DateModified, and fills dates that predate the Unix epoch from the file.
//
// Table and column names go through a schema.Adapter so the same TableSpec
// works on either library generation.
package dbupdate
