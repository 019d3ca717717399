package files

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Expand returns the regular files under root that match pattern, as sorted
// slash separated paths relative to root. Pattern segments are matched with
// path.Match; a "**" segment matches any number of directories. A pattern
// without meta characters that names a directory selects every file below it.
func Expand(root, pattern string) ([]string, error) {
	pattern = normalizePattern(pattern)
	if pattern == "" {
		return nil, errors.New("empty source pattern")
	}

	if !hasMeta(pattern) {
		info, err := os.Stat(filepath.Join(root, filepath.FromSlash(pattern)))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return []string{pattern}, nil
		}
		pattern += "/**"
	}

	segs := strings.Split(pattern, "/")
	for _, s := range segs {
		if _, err := path.Match(s, ""); err != nil {
			return nil, err
		}
	}

	start := filepath.Join(root, filepath.FromSlash(StaticPrefix(pattern)))
	if _, err := os.Stat(start); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var out []string
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matchSegments(segs, strings.Split(rel, "/")) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

// StaticPrefix returns the leading directories of pattern that contain no
// meta characters.
func StaticPrefix(pattern string) string {
	segs := strings.Split(normalizePattern(pattern), "/")
	var fixed []string
	for _, s := range segs[:len(segs)-1] {
		if hasMeta(s) {
			break
		}
		fixed = append(fixed, s)
	}
	return strings.Join(fixed, "/")
}

func normalizePattern(p string) string {
	return strings.Trim(strings.ReplaceAll(p, `\`, "/"), "/")
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

func matchSegments(pat, name []string) bool {
	for len(pat) > 0 {
		if pat[0] == "**" {
			for i := 0; i <= len(name); i++ {
				if matchSegments(pat[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pat[0], name[0]); !ok {
			return false
		}
		pat, name = pat[1:], name[1:]
	}
	return len(name) == 0
}
