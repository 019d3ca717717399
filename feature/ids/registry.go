package ids

import (
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"jellyfin-migrator/core/migerr"
)

// Mode selects which orderings Resolve tries for a candidate.
type Mode int

const (
	// ModeAuto tries the plain order first, then the ancestor order.
	ModeAuto Mode = iota
	// ModePlain only accepts the plain order.
	ModePlain
	// ModeAncestor only accepts the ancestor order.
	ModeAncestor
)

// Pair is one persisted mapping, both sides in hex.
type Pair struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Match is the result of a successful lookup.
type Match struct {
	Old ID
	New ID
	// Encoding is how the candidate was stored, including ancestor order.
	Encoding Encoding
}

// Registry maps old identifiers to new identifiers. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[ID]ID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[ID]ID)}
}

// Register records old -> new. old may be in any plain encoding. Registering
// the same pair again is a no-op; a different new value fails with ErrIdConflict.
func (r *Registry) Register(old any, newID ID) error {
	oldID, _, err := Decode(old)
	if err != nil {
		return err
	}
	return r.RegisterID(oldID, newID)
}

// RegisterID is Register for an already decoded identifier.
func (r *Registry) RegisterID(oldID, newID ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.m[oldID]; ok {
		if prev == newID {
			return nil
		}
		return fmt.Errorf("%w: %s is mapped to %s, refusing %s", migerr.ErrIdConflict, oldID, prev, newID)
	}
	r.m[oldID] = newID
	return nil
}

// Lookup returns the new identifier for a candidate in any of the six encodings.
func (r *Registry) Lookup(candidate any) (ID, error) {
	m, err := r.Resolve(candidate, ModeAuto)
	if err != nil {
		return ID{}, err
	}
	return m.New, nil
}

// Resolve finds the mapping for candidate and reports how it was encoded.
func (r *Registry) Resolve(candidate any, mode Mode) (Match, error) {
	raw, enc, err := Decode(candidate)
	if err != nil {
		return Match{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if mode != ModeAncestor {
		if n, ok := r.m[raw]; ok {
			return Match{Old: raw, New: n, Encoding: enc}, nil
		}
	}
	if mode != ModePlain {
		plain := Ancestor(raw)
		if n, ok := r.m[plain]; ok {
			enc.Ancestor = true
			return Match{Old: plain, New: n, Encoding: enc}, nil
		}
	}
	return Match{}, fmt.Errorf("%w: %s", migerr.ErrUnmappedIdentifier, raw)
}

// Translate returns value rewritten to its new identifier in the same encoding
// and Go type. changed is false when the identifier maps to itself.
func (r *Registry) Translate(value any, mode Mode) (out any, changed bool, err error) {
	m, err := r.Resolve(value, mode)
	if err != nil {
		return value, false, err
	}
	if m.Old == m.New {
		return value, false, nil
	}
	return Encode(m.New, m.Encoding), true, nil
}

// TranslateString rewrites a textual identifier, reporting whether it was
// registered with a different new value.
func (r *Registry) TranslateString(s string) (string, bool) {
	if !LooksLikeID(s) {
		return s, false
	}
	out, changed, err := r.Translate(s, ModeAuto)
	if err != nil || !changed {
		return s, false
	}
	return out.(string), true
}

// Len returns the number of registered mappings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.m)
}

// Changed returns the number of mappings whose new value differs from the old one.
func (r *Registry) Changed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for o, nw := range r.m {
		if o != nw {
			n++
		}
	}
	return n
}

// Snapshot returns all mappings sorted by old identifier.
func (r *Registry) Snapshot() []Pair {
	r.mu.RLock()
	out := make([]Pair, 0, len(r.m))
	for o, n := range r.m {
		out = append(out, Pair{Old: o.String(), New: n.String()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Old < out[j].Old })
	return out
}

// Restore loads pairs produced by Snapshot. It fails on malformed hex or on a
// pair that conflicts with an existing mapping.
func (r *Registry) Restore(pairs []Pair) error {
	for _, p := range pairs {
		o, err := parseHex(p.Old)
		if err != nil {
			return err
		}
		n, err := parseHex(p.New)
		if err != nil {
			return err
		}
		if err := r.RegisterID(o, n); err != nil {
			return err
		}
	}
	return nil
}

// Collisions returns new identifiers that more than one old identifier maps
// to, typically two source paths merged into one target path.
func (r *Registry) Collisions() map[ID][]ID {
	r.mu.RLock()
	byNew := make(map[ID][]ID)
	for o, n := range r.m {
		byNew[n] = append(byNew[n], o)
	}
	r.mu.RUnlock()

	out := make(map[ID][]ID)
	for n, olds := range byNew {
		if len(olds) > 1 {
			sort.Slice(olds, func(i, j int) bool { return olds[i].String() < olds[j].String() })
			out[n] = olds
		}
	}
	return out
}

func parseHex(s string) (ID, error) {
	var id ID
	if len(s) != 32 {
		return ID{}, fmt.Errorf("%w: %q", migerr.ErrInvalidIdentifierEncoding, s)
	}
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return ID{}, fmt.Errorf("%w: %q", migerr.ErrInvalidIdentifierEncoding, s)
	}
	return id, nil
}
