// Package paths rewrites absolute path references from the source layout to
// the target layout.
//
// A Resolver holds an ordered rule list. Rules compare whole path components,
// so "C:\Jellyfin" never matches "C:\JellyfinData". The first declared rule
// whose source prefix matches wins and resolution stops; declaring the more
// specific prefix first is how overlapping rules are expressed. Shadowed lists
// rules that an earlier rule makes unreachable.
//
// Both separators are accepted on the source side. Results are joined with the
// configured target separator.
//
// # Unresolved paths
//
// A string that looks like an absolute path but matches no rule is handled by
// the Unresolved policy: passthrough returns it unchanged, report returns it
// unchanged together with migerr.ErrPathUnresolved, fatal returns a fatal error.
// Strings that do not look like absolute paths are never reported.
//
// # Usage
//
//	r, err := paths.NewResolver(paths.Config{
//	    TargetSeparator: "/",
//	    Rules: []paths.Rule{{Source: `C:\Jellyfin\data`, Target: "/data"}},
//	})
//	out, err := r.Resolve(`C:\Jellyfin\data\subtitles\x.srt`) // "/data/subtitles/x.srt"
package paths
