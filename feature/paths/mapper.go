package paths

import (
	"path/filepath"
	"strings"
)

// Roots are the three directory roots of a migration.
type Roots struct {
	// Original is the Jellyfin data root as it was on the source host.
	Original string `mapstructure:"original" json:"original"`
	// Source is where the source files can be read on this machine.
	Source string `mapstructure:"source" json:"source"`
	// Target is where migrated files are written on this machine.
	Target string `mapstructure:"target" json:"target"`
}

// Mapper locates files on this machine from source files and Jellyfin paths.
type Mapper struct {
	roots Roots
	paths *Resolver
	fs    *Resolver
}

// NewMapper combines the Jellyfin path rules with the filesystem rules.
func NewMapper(roots Roots, pathRules, fsRules *Resolver) *Mapper {
	return &Mapper{roots: roots, paths: pathRules, fs: fsRules}
}

// Roots returns the configured roots.
func (m *Mapper) Roots() Roots {
	return m.roots
}

// PathRules returns the Jellyfin path resolver.
func (m *Mapper) PathRules() *Resolver {
	return m.paths
}

// FSRules returns the filesystem rules.
func (m *Mapper) FSRules() *Resolver {
	return m.fs
}

// OriginalPath returns where a file under the source root lived on the
// original host. Files outside the source root are returned unchanged.
func (m *Mapper) OriginalPath(source string) string {
	rel, err := filepath.Rel(m.roots.Source, source)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return source
	}
	if rel == "." {
		return m.roots.Original
	}
	sep := "/"
	if strings.Contains(m.roots.Original, `\`) {
		sep = `\`
	}
	base := strings.TrimRight(m.roots.Original, `/\`)
	return base + sep + strings.Join(strings.Split(filepath.ToSlash(rel), "/"), sep)
}

// TargetFor returns where a source file is written: the original location is
// rewritten by the path rules, then by the filesystem rules, and a result that
// is not absolute on this machine is placed under the target root.
func (m *Mapper) TargetFor(source string) string {
	p, _ := m.paths.Match(m.OriginalPath(source))
	p, _ = m.fs.Match(p)
	return m.local(p)
}

// FilesystemPath maps a path as Jellyfin sees it on the target host to a file
// on this machine.
func (m *Mapper) FilesystemPath(jellyfinPath string) string {
	p, _ := m.fs.Match(jellyfinPath)
	return m.local(p)
}

func (m *Mapper) local(p string) string {
	p = filepath.FromSlash(strings.ReplaceAll(p, `\`, "/"))
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	p = strings.TrimLeft(p, `/\`)
	return filepath.Join(m.roots.Target, p)
}
