package files

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"

	"jellyfin-migrator/feature/paths"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	textunicode "golang.org/x/text/encoding/unicode"
)

// ContentKind is how a file's content is rewritten.
type ContentKind int

const (
	ContentNone ContentKind = iota
	ContentDatabase
	ContentXML
	ContentJSON
	ContentMBLink
)

func (k ContentKind) String() string {
	switch k {
	case ContentDatabase:
		return "db"
	case ContentXML:
		return "xml"
	case ContentJSON:
		return "json"
	case ContentMBLink:
		return "mblink"
	default:
		return "none"
	}
}

// KindOf picks the content kind from the file extension.
func KindOf(name string) ContentKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".db":
		return ContentDatabase
	case ".xml", ".nfo":
		return ContentXML
	case ".json":
		return ContentJSON
	case ".mblink":
		return ContentMBLink
	default:
		return ContentNone
	}
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Elements whose text is prose, not paths.
var skippedElements = map[string]bool{
	"biography": true,
	"outline":   true,
}

// RewriteXML rewrites the text of every element except biography and outline.
// The document is edited in place: only the bytes of changed text nodes are
// replaced, so formatting, comments and the declaration survive untouched.
// A document declaring another charset is edited as UTF-8 and written back in
// its declared charset.
func RewriteXML(data []byte, fn paths.StringFunc, st *paths.Stats) ([]byte, error) {
	charset, err := xmlCharset(data)
	if err != nil {
		return nil, err
	}
	if charset == nil {
		return rewriteXML(data, fn, st)
	}

	utf8Data, err := charset.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	out, err := rewriteXML(utf8Data, fn, st)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(out, utf8Data) {
		return data, nil
	}
	encoded, err := charset.NewEncoder().Bytes(out)
	if err != nil {
		return nil, fmt.Errorf("encode xml: %w", err)
	}
	return encoded, nil
}

// xmlCharset returns the charset named by the XML declaration, nil for UTF-8,
// ASCII or a document without a declared encoding.
func xmlCharset(data []byte) (encoding.Encoding, error) {
	head := bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !bytes.HasPrefix(head, []byte("<?xml")) {
		return nil, nil
	}
	end := bytes.Index(head, []byte("?>"))
	if end < 0 {
		return nil, nil
	}
	decl := string(head[:end])
	i := strings.Index(decl, "encoding")
	if i < 0 {
		return nil, nil
	}
	rest := strings.TrimLeft(decl[i+len("encoding"):], " \t\r\n")
	if !strings.HasPrefix(rest, "=") {
		return nil, nil
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if rest == "" || (rest[0] != '"' && rest[0] != '\'') {
		return nil, nil
	}
	label, _, ok := strings.Cut(rest[1:], rest[:1])
	if !ok {
		return nil, nil
	}
	switch strings.ToLower(label) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return nil, nil
	}

	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("parse xml: unsupported charset %q", label)
	}
	if enc == textunicode.UTF8 {
		return nil, nil
	}
	return enc, nil
}

// rewriteXML edits a UTF-8 document.
func rewriteXML(data []byte, fn paths.StringFunc, st *paths.Stats) ([]byte, error) {
	type splice struct {
		start, end int64
		text       []byte
	}

	var (
		edits []splice
		stack []string
	)
	d := xml.NewDecoder(bytes.NewReader(data))
	d.Strict = true
	// The input is already UTF-8 whatever its declaration says.
	d.CharsetReader = func(_ string, r io.Reader) (io.Reader, error) { return r, nil }
	for {
		start := d.InputOffset()
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, strings.ToLower(t.Name.Local))
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) == 0 || skippedElements[stack[len(stack)-1]] {
				continue
			}
			text := string(t)
			core := strings.TrimFunc(text, unicode.IsSpace)
			if core == "" {
				continue
			}
			out := paths.RewriteString(core, fn, st)
			if out == core {
				continue
			}
			lead := text[:strings.Index(text, core)]
			trail := text[len(lead)+len(core):]
			end := d.InputOffset()

			var replacement string
			if bytes.HasPrefix(data[start:end], []byte("<![CDATA[")) {
				replacement = "<![CDATA[" + lead + out + trail + "]]>"
			} else {
				replacement = lead + textEscaper.Replace(out) + trail
			}
			edits = append(edits, splice{start: start, end: end, text: []byte(replacement)})
		}
	}

	if len(edits) == 0 {
		return data, nil
	}
	var out bytes.Buffer
	var pos int64
	for _, e := range edits {
		out.Write(data[pos:e.start])
		out.Write(e.text)
		pos = e.end
	}
	out.Write(data[pos:])
	return out.Bytes(), nil
}

// RewriteJSON rewrites every string value of a JSON document. Numbers keep
// their literal form. An unchanged document is returned as given.
func RewriteJSON(data []byte, fn paths.StringFunc, st *paths.Stats) ([]byte, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	d.UseNumber()
	var doc any
	if err := d.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	before := st.Modified
	doc = paths.RewriteValue(doc, fn, st)
	if st.Modified == before {
		return data, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if looksIndented(data) {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if !bytes.HasSuffix(data, []byte("\n")) {
		return bytes.TrimRight(buf.Bytes(), "\n"), nil
	}
	return buf.Bytes(), nil
}

func looksIndented(data []byte) bool {
	return bytes.Contains(data, []byte("\n "))
}

// RewriteMBLink rewrites a .mblink file, which holds one path.
func RewriteMBLink(data []byte, fn paths.StringFunc, st *paths.Stats) []byte {
	text := string(data)
	core := strings.TrimFunc(text, unicode.IsSpace)
	if core == "" {
		return data
	}
	out := paths.RewriteString(core, fn, st)
	if out == core {
		return data
	}
	lead := text[:strings.Index(text, core)]
	return []byte(lead + out + text[len(lead)+len(core):])
}
