// Package scanner finds Jellyfin item identifiers stored in other databases.
//
// Plugins keep their own SQLite files and reference library items by
// identifier. Before adding such a file to the ids work list it helps to know
// which tables and columns hold identifiers and in which encoding.
//
// # Usage
//
//	idx, err := scanner.LoadIndex(ctx, libraryAdapter)
//	svc := scanner.NewService(idx, logger)
//	findings, err := svc.Scan(ctx, pluginDB)
//
// Each Finding lists the encodings seen in one column, suffixed with "pure"
// when a value is the identifier alone and "embedded" when the identifier is
// part of a longer text.
package scanner
