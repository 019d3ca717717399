package paths

import (
	"strings"

	"jellyfin-migrator/feature/ids"
)

// Stats counts rewrite outcomes over one value or file.
type Stats struct {
	Modified int
	Ignored  int
	Errors   []error
}

// Add merges o into s.
func (s *Stats) Add(o Stats) {
	s.Modified += o.Modified
	s.Ignored += o.Ignored
	s.Errors = append(s.Errors, o.Errors...)
}

// StringFunc rewrites a single string value.
type StringFunc func(s string) (out string, changed bool, err error)

// Func adapts the resolver to a StringFunc.
func (r *Resolver) Func() StringFunc {
	return func(s string) (string, bool, error) {
		out, err := r.Resolve(s)
		return out, out != s, err
	}
}

func apply(s string, fn StringFunc, st *Stats) string {
	out, changed, err := fn(s)
	if err != nil {
		st.Errors = append(st.Errors, err)
	}
	if changed {
		st.Modified++
		return out
	}
	st.Ignored++
	return s
}

// RewriteString rewrites one string and records the outcome in st.
func RewriteString(s string, fn StringFunc, st *Stats) string {
	return apply(s, fn, st)
}

// RewriteValue walks a decoded JSON value and rewrites every string it holds.
// Object keys are left alone.
func RewriteValue(v any, fn StringFunc, st *Stats) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = RewriteValue(e, fn, st)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = RewriteValue(e, fn, st)
		}
		return t
	case string:
		return apply(t, fn, st)
	default:
		return v
	}
}

// RewriteImages rewrites the path part of a Jellyfin image column. Entries are
// separated by '|' and each entry is path*ticks*type*width*height*blurhash.
func RewriteImages(data string, fn StringFunc, st *Stats) string {
	if data == "" {
		return data
	}
	entries := strings.Split(data, "|")
	for i, entry := range entries {
		parts := strings.SplitN(entry, "*", 2)
		parts[0] = apply(parts[0], fn, st)
		entries[i] = strings.Join(parts, "*")
	}
	return strings.Join(entries, "|")
}

// IDTranslator maps a textual identifier to its new value.
type IDTranslator interface {
	TranslateString(s string) (string, bool)
}

// IDPathFunc returns a StringFunc that replaces identifiers embedded in paths.
func IDPathFunc(tr IDTranslator, sep string) StringFunc {
	return func(s string) (string, bool, error) {
		out, ok := RewriteIDPath(s, tr, sep)
		return out, ok, nil
	}
}

// RewriteIDPath replaces the identifier in a path such as
// metadata/library/83/833addde.../poster.jpg. The file stem is checked first,
// then directory components from the root down; only the first hit is
// replaced. A parent directory whose name is a prefix of the old identifier is
// renamed to the same-length prefix of the new one. The result is joined with
// sep; an unchanged path is returned as given.
func RewriteIDPath(path string, tr IDTranslator, sep string) (string, bool) {
	comps := Split(path)
	if len(comps) == 0 {
		return path, false
	}

	last := len(comps) - 1
	name := comps[last]
	stem, ext := name, ""
	if dot := strings.LastIndexByte(name, '.'); dot > 0 {
		stem, ext = name[:dot], name[dot:]
	}
	if ids.LooksLikeID(stem) {
		if n, ok := tr.TranslateString(stem); ok {
			comps[last] = n + ext
			return strings.Join(comps, sep), true
		}
	}

	for i := 0; i < last; i++ {
		old := comps[i]
		if !ids.LooksLikeID(old) {
			continue
		}
		n, ok := tr.TranslateString(old)
		if !ok {
			continue
		}
		comps[i] = n
		if i > 0 {
			parent := comps[i-1]
			if parent != "" && len(parent) < len(old) && strings.HasPrefix(old, parent) {
				comps[i-1] = n[:len(parent)]
			}
		}
		return strings.Join(comps, sep), true
	}
	return path, false
}
