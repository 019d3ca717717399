package paths

import (
	"errors"
	"testing"

	"jellyfin-migrator/core/migerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	r, err := NewResolver(cfg)
	require.NoError(t, err)
	return r
}

func TestResolver_FirstDeclaredMatchWins(t *testing.T) {
	t.Run("specific rule declared first", func(t *testing.T) {
		r := newResolver(t, Config{Rules: []Rule{
			{Source: `C:\Jellyfin\data`, Target: "/data"},
			{Source: `C:\Jellyfin`, Target: "/srv"},
		}})

		out, err := r.Resolve(`C:\Jellyfin\data\subtitles\x.srt`)
		require.NoError(t, err)
		assert.Equal(t, "/data/subtitles/x.srt", out)

		out, err = r.Resolve(`C:\Jellyfin\cache\x.jpg`)
		require.NoError(t, err)
		assert.Equal(t, "/srv/cache/x.jpg", out)
		assert.Empty(t, r.Shadowed())
	})

	t.Run("generic rule declared first", func(t *testing.T) {
		r := newResolver(t, Config{Rules: []Rule{
			{Source: `C:\Jellyfin`, Target: "/srv"},
			{Source: `C:\Jellyfin\data`, Target: "/data"},
		}})

		out, err := r.Resolve(`C:\Jellyfin\data\subtitles\x.srt`)
		require.NoError(t, err)
		assert.Equal(t, "/srv/data/subtitles/x.srt", out, "declaration order is the policy, not prefix length")

		shadowed := r.Shadowed()
		require.Len(t, shadowed, 1)
		assert.Equal(t, 1, shadowed[0].Index)
		assert.Equal(t, 0, shadowed[0].CoveredBy)
	})
}

func TestResolver_Components(t *testing.T) {
	r := newResolver(t, Config{Rules: []Rule{{Source: `C:\Jellyfin`, Target: "/srv"}}})

	out, ok := r.Match(`C:\JellyfinData\x`)
	assert.False(t, ok, "prefix must match whole components")
	assert.Equal(t, `C:\JellyfinData\x`, out)

	out, ok = r.Match(`C:/Jellyfin/x`)
	assert.True(t, ok, "both separators are accepted on the source side")
	assert.Equal(t, "/srv/x", out)

	out, ok = r.Match(`C:\Jellyfin`)
	assert.True(t, ok)
	assert.Equal(t, "/srv", out)

	out, ok = r.Match(`C:\Jellyfin\`)
	assert.True(t, ok)
	assert.Equal(t, "/srv", out)
}

func TestResolver_CaseSensitivity(t *testing.T) {
	rules := []Rule{{Source: `C:\Jellyfin\Media`, Target: "/media"}}

	sensitive := newResolver(t, Config{Rules: rules})
	_, ok := sensitive.Match(`c:\jellyfin\media\a.mkv`)
	assert.False(t, ok)

	insensitive := newResolver(t, Config{Rules: rules, CaseInsensitive: true})
	out, ok := insensitive.Match(`c:\jellyfin\media\A.mkv`)
	assert.True(t, ok)
	assert.Equal(t, "/media/A.mkv", out, "the unmatched remainder keeps its case")
}

func TestResolver_TargetSeparator(t *testing.T) {
	r := newResolver(t, Config{
		TargetSeparator: `\`,
		Rules: []Rule{
			{Source: "/var/lib/jellyfin", Target: `D:\Jellyfin`},
			{Source: "/mnt/nas", Target: `\\nas\share`},
		},
	})

	out, _ := r.Match("/var/lib/jellyfin/metadata/a.jpg")
	assert.Equal(t, `D:\Jellyfin\metadata\a.jpg`, out)

	out, _ = r.Match("/mnt/nas/movies/a.mkv")
	assert.Equal(t, `\\nas\share\movies\a.mkv`, out)
}

func TestResolver_SpecialVariables(t *testing.T) {
	r := newResolver(t, Config{
		Rules: []Rule{{Source: `C:\ProgramData\Jellyfin\Server`, Target: "/var/lib/jellyfin"}},
		Special: Special{
			AppDataPath:  "/var/lib/jellyfin/data",
			MetadataPath: "/var/lib/jellyfin/metadata",
		},
	})

	out, err := r.Resolve(`%MetadataPath%\library\83\833addde992893e93d0572907f8b4cad\poster.jpg`)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/jellyfin/metadata/library/83/833addde992893e93d0572907f8b4cad/poster.jpg", out)

	out, err = r.Resolve("%AppDataPath%")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/jellyfin/data", out)
}

func TestResolver_RootAndEmptyTargets(t *testing.T) {
	r := newResolver(t, Config{Rules: []Rule{
		{Source: "/config", Target: "/"},
		{Source: "/media", Target: ""},
	}})

	out, _ := r.Match("/config/data/a.db")
	assert.Equal(t, "/data/a.db", out)

	out, _ = r.Match("/media/movies/a.mkv")
	assert.Equal(t, "movies/a.mkv", out, "an empty target makes the remainder relative")
}

func TestResolver_UnresolvedPolicy(t *testing.T) {
	rules := []Rule{{Source: `C:\Jellyfin`, Target: "/srv"}}
	unmatched := `E:\Other\file.mkv`

	t.Run("passthrough", func(t *testing.T) {
		r := newResolver(t, Config{Rules: rules, Unresolved: PolicyPassthrough})
		out, err := r.Resolve(unmatched)
		require.NoError(t, err)
		assert.Equal(t, unmatched, out)
	})

	t.Run("default is passthrough", func(t *testing.T) {
		r := newResolver(t, Config{Rules: rules})
		_, err := r.Resolve(unmatched)
		assert.NoError(t, err)
	})

	t.Run("report", func(t *testing.T) {
		r := newResolver(t, Config{Rules: rules, Unresolved: PolicyReport})
		out, err := r.Resolve(unmatched)
		assert.True(t, errors.Is(err, migerr.ErrPathUnresolved))
		assert.False(t, migerr.IsFatal(err))
		assert.Equal(t, unmatched, out)
	})

	t.Run("fatal", func(t *testing.T) {
		r := newResolver(t, Config{Rules: rules, Unresolved: PolicyFatal})
		_, err := r.Resolve(unmatched)
		assert.True(t, errors.Is(err, migerr.ErrPathUnresolved))
		assert.True(t, migerr.IsFatal(err))
	})

	t.Run("non paths are never reported", func(t *testing.T) {
		r := newResolver(t, Config{Rules: rules, Unresolved: PolicyFatal})
		for _, s := range []string{"", "Action", "https://example.com/a", "relative/dir"} {
			out, err := r.Resolve(s)
			assert.NoError(t, err, s)
			assert.Equal(t, s, out)
		}
	})
}

func TestNewResolver_Invalid(t *testing.T) {
	_, err := NewResolver(Config{TargetSeparator: ":"})
	assert.Error(t, err)

	_, err = NewResolver(Config{Unresolved: "ignore"})
	assert.Error(t, err)

	_, err = NewResolver(Config{Rules: []Rule{{Source: "", Target: "/x"}}})
	assert.Error(t, err)
}

func TestNewResolver_ChainedRules(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"target under its own source", Config{Rules: []Rule{{Source: "/srv/jf", Target: "/srv/jf/config"}}}, true},
		{"target under a later source", Config{Rules: []Rule{
			{Source: `C:\Media`, Target: "/staging"},
			{Source: "/staging", Target: "/media"},
		}}, true},
		{"folded case", Config{CaseInsensitive: true, Rules: []Rule{
			{Source: `C:\Media`, Target: `C:\MEDIA\new`},
		}}, true},
		{"special variable target", Config{
			Rules:   []Rule{{Source: "/old", Target: "/new"}},
			Special: Special{MetadataPath: "/old/metadata"},
		}, true},
		{"identity rule", Config{Rules: []Rule{{Source: "/media", Target: "/media/"}}}, false},
		{"target caught by an identity rule", Config{Rules: []Rule{
			{Source: `C:\Media`, Target: "/media/films"},
			{Source: "/media", Target: "/media"},
		}}, false},
		{"disjoint rules", Config{Rules: []Rule{
			{Source: `C:\Jellyfin\media`, Target: "/media"},
			{Source: `C:\Jellyfin`, Target: "/config"},
		}}, false},
		{"sibling prefix", Config{Rules: []Rule{{Source: "/srv/jf", Target: "/srv/jfnew"}}}, false},
		{"case differs without folding", Config{Rules: []Rule{{Source: `C:\Media`, Target: `c:\media\new`}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "rewritten again")
				return
			}
			require.NoError(t, err)

			// Rewriting a rewritten path changes nothing.
			for _, rule := range r.Rules() {
				once, _ := r.Match(rule.Source + "/a/b.mkv")
				twice, _ := r.Match(once)
				assert.Equal(t, once, twice)
			}
		})
	}
}

func TestLooksAbsolute(t *testing.T) {
	tests := map[string]bool{
		"/media/a":         true,
		`C:\a`:             true,
		"c:/a":             true,
		`\\nas\share`:      true,
		"%MetadataPath%":   true,
		`%AppDataPath%\x`:  true,
		"%notavar":         false,
		"100%":             false,
		"media/a":          false,
		"C:":               false,
		"http://host/path": false,
		"":                 false,
	}
	for in, want := range tests {
		assert.Equal(t, want, LooksAbsolute(in), in)
	}
}

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"", "a", "b"}, Split("/a//b/"))
	assert.Equal(t, []string{"", "", "host", "share"}, Split(`\\host\share`))
	assert.Equal(t, []string{"C:", "x"}, Split(`C:\x`))
	assert.Nil(t, Split(""))
}
