// Package migration drives the four stage pipeline that moves a Jellyfin
// installation to a new host layout:
//
//  1. PathMigration copies the configured files to their target location and
//     rewrites the paths inside them, then reads the migrated library database
//     and registers every old identifier with the identifier recomputed from
//     the item's new path.
//  2. IdPathRenaming moves files and directories whose names carry an old
//     identifier, and rewrites identifier paths inside them.
//  3. DatabaseIdUpdate rewrites identifier columns of the configured tables.
//  4. DateSync aligns file modification times with the library database.
//
// Stages run strictly in order. Progress lives in a checkpoint.Store: every
// file, table batch and stage transition is recorded as soon as it is
// committed, so a rerun after a crash or an interrupt resumes at the first
// unit of work that did not finish. Files of one stage are processed by a
// bounded worker pool; the tables of one database are updated sequentially.
//
// Item failures are collected in a StageReport and do not stop the stage.
// Errors classified by migerr.IsFatal stop the run without recording the
// failing unit.
package migration
