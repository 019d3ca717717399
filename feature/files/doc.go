// Package files copies, rewrites and renames the files of a Jellyfin data
// tree.
//
// A Job selects files under the source root with a glob (*, ? and **) and
// names where they go: "auto" copies each file to the location the path
// rules give it, "auto-existing" works on a file that is already at that
// location, anything else is an explicit target path.
//
// After the copy the content is rewritten according to the file type:
// SQLite databases through a DatabaseRewriter, XML and NFO element text,
// JSON string values and .mblink files, which hold a single path. Rewrites
// are written to a temporary file and renamed into place.
//
// Copies are resumable. A copy goes to <target>.partial first and is renamed
// when complete; a target that already has the source's size and modification
// time is not copied again, and a checkpoint marker keeps a rewritten target
// from being overwritten by a second copy.
package files
