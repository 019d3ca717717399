// Package schema hides the differences between the Jellyfin database
// generations behind one naming and storage view.
//
// Jellyfin up to 10.10 keeps its library in TypedBaseItems with binary
// identifiers. 10.11 moved to an EF Core schema: BaseItems with identifiers
// stored as text, several tables renamed and a few new ones. Detect probes the
// database once and returns an Adapter bound to the matching Profile; callers
// then ask the adapter for physical table and column names instead of
// hardcoding them.
//
// Names that belong to either generation are accepted as input, so a work list
// written for TypedBaseItems also addresses BaseItems on a newer database.
// Names unknown to both profiles pass through unchanged.
//
// The adapter never issues DDL.
package schema
