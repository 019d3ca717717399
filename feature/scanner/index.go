package scanner

import (
	"context"
	"fmt"
	"strings"

	"jellyfin-migrator/core/database"
	"jellyfin-migrator/core/migerr"
	"jellyfin-migrator/feature/ids"
	"jellyfin-migrator/feature/schema"
)

// Index maps every encoding of the library identifiers back to its name.
type Index struct {
	binary map[ids.ID]string
	text   map[string]string
	n      int
}

// Len returns the number of library identifiers indexed.
func (x *Index) Len() int {
	return x.n
}

// NewIndex indexes ids in all six encodings.
func NewIndex(list []ids.ID) *Index {
	x := &Index{
		binary: make(map[ids.ID]string, 2*len(list)),
		text:   make(map[string]string, 4*len(list)),
		n:      len(list),
	}
	for _, id := range list {
		for _, enc := range ids.AllEncodings {
			if enc.Form == ids.FormBinary {
				stored := id
				if enc.Ancestor {
					stored = ids.Ancestor(id)
				}
				x.binary[stored] = enc.String()
				continue
			}
			x.text[ids.EncodeString(id, enc)] = enc.String()
		}
	}
	return x
}

// LoadIndex reads the identifiers of every item in the library database.
func LoadIndex(ctx context.Context, a *schema.Adapter) (*Index, error) {
	if a.Variant() == schema.Generic {
		return nil, fmt.Errorf("%w: no library items table", migerr.ErrUnsupportedSchema)
	}
	table := a.CanonicalName(schema.TableItems)
	query := fmt.Sprintf("SELECT %s FROM %s",
		database.QuoteIdent(a.ColumnName(table, schema.ColID)), database.QuoteIdent(table))

	rows, err := a.DB().WithContext(ctx).Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var list []ids.ID
	for rows.Next() {
		var raw any
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		id, _, err := ids.Decode(raw)
		if err != nil {
			continue
		}
		list = append(list, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return NewIndex(list), nil
}

// matchBinary returns the encoding of a 16 byte value.
func (x *Index) matchBinary(b []byte) (string, bool) {
	if len(b) != 16 {
		return "", false
	}
	var id ids.ID
	copy(id[:], b)
	enc, ok := x.binary[id]
	return enc, ok
}

// matchText returns the encodings of identifiers found in s. pure is set for
// a value that is nothing but one identifier.
func (x *Index) matchText(s string) (found []string, pure bool) {
	lower := strings.ToLower(strings.TrimSpace(s))
	if enc, ok := x.text[lower]; ok {
		return []string{enc}, true
	}
	seen := map[string]bool{}
	for _, run := range strings.FieldsFunc(lower, notIDChar) {
		if len(run) < 32 {
			continue
		}
		for i := 0; i+32 <= len(run); i++ {
			for _, n := range [2]int{32, 36} {
				if i+n > len(run) {
					continue
				}
				if enc, ok := x.text[run[i:i+n]]; ok && !seen[enc] {
					seen[enc] = true
					found = append(found, enc)
				}
			}
		}
	}
	return found, false
}

func notIDChar(r rune) bool {
	return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f' || r == '-')
}
