package files

import (
	"testing"

	"jellyfin-migrator/feature/paths"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func mediaRules(t *testing.T) paths.StringFunc {
	t.Helper()
	r, err := paths.NewResolver(paths.Config{Rules: []paths.Rule{{Source: `C:\Jellyfin\media`, Target: "/media"}}})
	require.NoError(t, err)
	return r.Func()
}

func TestRewriteXML(t *testing.T) {
	in := `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<movie>
  <!-- C:\Jellyfin\media\comment -->
  <biography>Shot at C:\Jellyfin\media\x</biography>
  <outline>C:\Jellyfin\media\y</outline>
  <path>C:\Jellyfin\media\Movie &amp; Co\movie.mkv</path>
  <art>
    <poster><![CDATA[C:\Jellyfin\media\poster.jpg]]></poster>
  </art>
  <title>Movie</title>
  <file> C:\Jellyfin\media\spaced.mkv </file>
</movie>
`
	want := `<?xml version="1.0" encoding="utf-8" standalone="yes"?>
<movie>
  <!-- C:\Jellyfin\media\comment -->
  <biography>Shot at C:\Jellyfin\media\x</biography>
  <outline>C:\Jellyfin\media\y</outline>
  <path>/media/Movie &amp; Co/movie.mkv</path>
  <art>
    <poster><![CDATA[/media/poster.jpg]]></poster>
  </art>
  <title>Movie</title>
  <file> /media/spaced.mkv </file>
</movie>
`
	var st paths.Stats
	out, err := RewriteXML([]byte(in), mediaRules(t), &st)
	require.NoError(t, err)
	assert.Equal(t, want, string(out))
	assert.Equal(t, 3, st.Modified)
	assert.Equal(t, 1, st.Ignored)

	t.Run("unchanged document is returned as is", func(t *testing.T) {
		var st paths.Stats
		doc := []byte("<a><b>nothing</b></a>")
		out, err := RewriteXML(doc, mediaRules(t), &st)
		require.NoError(t, err)
		assert.Equal(t, doc, out)
	})

	t.Run("malformed", func(t *testing.T) {
		var st paths.Stats
		_, err := RewriteXML([]byte("<a><b></a>"), mediaRules(t), &st)
		assert.Error(t, err)
	})
}

func TestRewriteXML_DeclaredCharset(t *testing.T) {
	latin1 := func(s string) []byte {
		b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
		require.NoError(t, err)
		return b
	}
	in := latin1(`<?xml version="1.0" encoding="ISO-8859-1"?>
<movie>
  <title>Amélie</title>
  <path>C:\Jellyfin\media\Amélie (2001)\amélie.mkv</path>
</movie>
`)
	want := latin1(`<?xml version="1.0" encoding="ISO-8859-1"?>
<movie>
  <title>Amélie</title>
  <path>/media/Amélie (2001)/amélie.mkv</path>
</movie>
`)

	var st paths.Stats
	out, err := RewriteXML(in, mediaRules(t), &st)
	require.NoError(t, err)
	assert.Equal(t, want, out)
	assert.Equal(t, 1, st.Modified)

	t.Run("unchanged document keeps its bytes", func(t *testing.T) {
		doc := latin1(`<?xml version='1.0' encoding='windows-1252'?><movie><title>Café</title></movie>`)
		var st paths.Stats
		out, err := RewriteXML(doc, mediaRules(t), &st)
		require.NoError(t, err)
		assert.Equal(t, doc, out)
	})

	t.Run("unknown charset", func(t *testing.T) {
		var st paths.Stats
		_, err := RewriteXML([]byte(`<?xml version="1.0" encoding="x-made-up"?><a/>`), mediaRules(t), &st)
		assert.ErrorContains(t, err, "unsupported charset")
	})

	t.Run("target not representable", func(t *testing.T) {
		r, err := paths.NewResolver(paths.Config{Rules: []paths.Rule{{Source: `C:\Jellyfin\media`, Target: "/медиа"}}})
		require.NoError(t, err)
		var st paths.Stats
		_, err = RewriteXML(in, r.Func(), &st)
		assert.ErrorContains(t, err, "encode xml")
	})
}

func TestRewriteJSON(t *testing.T) {
	t.Run("indented", func(t *testing.T) {
		in := "{\n  \"Path\": \"C:\\\\Jellyfin\\\\media\\\\a & b\",\n  \"Size\": 12345678901234567890\n}\n"
		var st paths.Stats
		out, err := RewriteJSON([]byte(in), mediaRules(t), &st)
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"Path\": \"/media/a & b\",\n  \"Size\": 12345678901234567890\n}\n", string(out))
	})

	t.Run("compact without newline", func(t *testing.T) {
		in := `{"List":["C:\\Jellyfin\\media\\x","plain"]}`
		var st paths.Stats
		out, err := RewriteJSON([]byte(in), mediaRules(t), &st)
		require.NoError(t, err)
		assert.Equal(t, `{"List":["/media/x","plain"]}`, string(out))
		assert.Equal(t, 1, st.Modified)
	})

	t.Run("unchanged", func(t *testing.T) {
		in := []byte(`{ "a" : 1 }`)
		var st paths.Stats
		out, err := RewriteJSON(in, mediaRules(t), &st)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("invalid", func(t *testing.T) {
		var st paths.Stats
		_, err := RewriteJSON([]byte("{"), mediaRules(t), &st)
		assert.Error(t, err)
	})
}

func TestRewriteMBLink(t *testing.T) {
	var st paths.Stats
	out := RewriteMBLink([]byte("C:\\Jellyfin\\media\\Movies\r\n"), mediaRules(t), &st)
	assert.Equal(t, "/media/Movies\r\n", string(out))
	assert.Equal(t, 1, st.Modified)

	assert.Equal(t, []byte("  "), RewriteMBLink([]byte("  "), mediaRules(t), &st))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ContentDatabase, KindOf("data/library.db"))
	assert.Equal(t, ContentXML, KindOf("movie.NFO"))
	assert.Equal(t, ContentXML, KindOf("options.xml"))
	assert.Equal(t, ContentJSON, KindOf("x.json"))
	assert.Equal(t, ContentMBLink, KindOf("Movies.mblink"))
	assert.Equal(t, ContentNone, KindOf("poster.jpg"))
	assert.Equal(t, "xml", ContentXML.String())
}
