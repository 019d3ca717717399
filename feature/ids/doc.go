// Package ids implements the Jellyfin content identifier codec and the
// old-to-new identifier registry.
//
// # Identifiers
//
// A Jellyfin identifier is MD5(item_type + path) where the concatenated string
// is hashed as UTF-16LE, the way .NET encodes strings. The same 16 bytes show up
// in several encodings across databases and file names:
//
//   - bin: the raw 16 bytes (BLOB columns)
//   - str: 32 lowercase hex characters
//   - str-dash: hex grouped 8-4-4-4-12
//   - ancestor-*: any of the above with the first 8 bytes reordered
//     as 3,2,1,0,5,4,7,6 (the .NET Guid byte layout)
//
// The ancestor permutation is its own inverse.
//
// # Registry
//
// The Registry maps every old identifier to the identifier recomputed from its
// migrated path. It is filled once after path migration and then shared read
// only between workers.
//
//	reg := ids.NewRegistry()
//	_ = reg.Register(oldBlob, ids.Compute("MediaBrowser.Controller.Entities.Movies.Movie", "/media/movie.mkv"))
//	v, changed, err := reg.Translate(row["ItemId"], ids.ModePlain)
package ids
