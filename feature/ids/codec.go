package ids

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"jellyfin-migrator/core/migerr"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/unicode"
)

// ID is an identifier in canonical binary form.
type ID [16]byte

// Form is the textual or binary shape of an encoded identifier.
type Form int

const (
	FormBinary Form = iota
	FormHex
	FormDashed
)

// ancestorOrder is the byte order of the first 8 bytes in ancestor form.
var ancestorOrder = [8]int{3, 2, 1, 0, 5, 4, 7, 6}

// Encoding fully describes how an identifier is stored.
type Encoding struct {
	Form     Form
	Ancestor bool
	// Upper keeps uppercase hex digits on re-encoding.
	Upper bool
}

var (
	EncBin             = Encoding{Form: FormBinary}
	EncStr             = Encoding{Form: FormHex}
	EncStrDash         = Encoding{Form: FormDashed}
	EncAncestorBin     = Encoding{Form: FormBinary, Ancestor: true}
	EncAncestorStr     = Encoding{Form: FormHex, Ancestor: true}
	EncAncestorStrDash = Encoding{Form: FormDashed, Ancestor: true}
)

// AllEncodings lists the six encodings a stored identifier can take.
var AllEncodings = []Encoding{EncBin, EncStr, EncStrDash, EncAncestorBin, EncAncestorStr, EncAncestorStrDash}

// Compute returns the identifier Jellyfin derives for an item.
func Compute(itemType, path string) ID {
	// The x/text encoder substitutes U+FFFD for invalid UTF-8 and never fails on complete input.
	b, _ := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(itemType + path))
	return ID(md5.Sum(b))
}

// Ancestor applies the ancestor byte permutation. Applying it twice is the identity.
func Ancestor(id ID) ID {
	out := id
	for i, j := range ancestorOrder {
		out[i] = id[j]
	}
	return out
}

// String returns the lowercase hex form.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// Dashed returns the 8-4-4-4-12 form.
func (id ID) Dashed() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether id is all zero bytes.
func (id ID) IsZero() bool {
	return id == ID{}
}

// Decode parses a stored identifier. It detects the form from the Go type and
// length of v: a 16 byte slice is binary, 32 hex characters are hex and 36
// characters with dashes at the uuid positions are dashed. The returned ID is
// the value as stored; whether it is in ancestor order cannot be told from the
// bytes and is decided by the caller or by the registry.
func Decode(v any) (ID, Encoding, error) {
	switch t := v.(type) {
	case ID:
		return t, EncBin, nil
	case []byte:
		if len(t) == 16 {
			var id ID
			copy(id[:], t)
			return id, EncBin, nil
		}
		return decodeString(string(t))
	case string:
		return decodeString(t)
	case nil:
		return ID{}, Encoding{}, fmt.Errorf("%w: null value", migerr.ErrInvalidIdentifierEncoding)
	default:
		return ID{}, Encoding{}, fmt.Errorf("%w: unsupported type %T", migerr.ErrInvalidIdentifierEncoding, v)
	}
}

func decodeString(s string) (ID, Encoding, error) {
	var id ID
	enc := Encoding{Upper: s != strings.ToLower(s)}
	switch len(s) {
	case 32:
		if _, err := hex.Decode(id[:], []byte(s)); err != nil {
			return ID{}, Encoding{}, fmt.Errorf("%w: %q", migerr.ErrInvalidIdentifierEncoding, s)
		}
		enc.Form = FormHex
		return id, enc, nil
	case 36:
		if s[8] != '-' || s[13] != '-' || s[18] != '-' || s[23] != '-' {
			return ID{}, Encoding{}, fmt.Errorf("%w: %q", migerr.ErrInvalidIdentifierEncoding, s)
		}
		u, err := uuid.Parse(s)
		if err != nil {
			return ID{}, Encoding{}, fmt.Errorf("%w: %q", migerr.ErrInvalidIdentifierEncoding, s)
		}
		enc.Form = FormDashed
		return ID(u), enc, nil
	default:
		return ID{}, Encoding{}, fmt.Errorf("%w: %q has length %d", migerr.ErrInvalidIdentifierEncoding, s, len(s))
	}
}

// DecodeAs parses v and undoes the ancestor permutation when enc says so.
func DecodeAs(v any, ancestor bool) (ID, Encoding, error) {
	id, enc, err := Decode(v)
	if err != nil {
		return ID{}, Encoding{}, err
	}
	if ancestor {
		id = Ancestor(id)
		enc.Ancestor = true
	}
	return id, enc, nil
}

// Encode renders a canonical identifier in enc. Binary forms return []byte,
// textual forms return string.
func Encode(id ID, enc Encoding) any {
	if enc.Ancestor {
		id = Ancestor(id)
	}
	switch enc.Form {
	case FormBinary:
		out := make([]byte, 16)
		copy(out, id[:])
		return out
	case FormDashed:
		s := id.Dashed()
		if enc.Upper {
			s = strings.ToUpper(s)
		}
		return s
	default:
		s := id.String()
		if enc.Upper {
			s = strings.ToUpper(s)
		}
		return s
	}
}

// EncodeString is Encode for textual forms. Binary forms fall back to hex.
func EncodeString(id ID, enc Encoding) string {
	if enc.Form == FormBinary {
		enc.Form = FormHex
	}
	return Encode(id, enc).(string)
}

// ParseEncoding maps a configuration key (bin, str, str-dash, ancestor-bin,
// ancestor-str, ancestor-str-dash) to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	for _, e := range AllEncodings {
		if e.String() == name {
			return e, nil
		}
	}
	return Encoding{}, fmt.Errorf("unknown identifier encoding %q", name)
}

func (e Encoding) String() string {
	var base string
	switch e.Form {
	case FormBinary:
		base = "bin"
	case FormDashed:
		base = "str-dash"
	default:
		base = "str"
	}
	if e.Ancestor {
		return "ancestor-" + base
	}
	return base
}

// LooksLikeID reports whether s could be a textual identifier, used to pick
// path components worth a registry lookup.
func LooksLikeID(s string) bool {
	if len(s) != 32 && len(s) != 36 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F', c == '-':
		default:
			return false
		}
	}
	return true
}
