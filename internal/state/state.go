// Package state holds the materialized campaign state model shared by the
// checkpoint, snapshot and diff components.
//
// A State is a two-level map: entity kind ("npc", "pc", "item", "world", ...)
// to entity id to the entity's fields. The relational store owns the rows;
// this package only knows how to copy, serialize and checksum them.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// ChecksumPrefix tags checksums produced by Checksum. A checksum without it
// was made by some other algorithm and cannot be verified.
const ChecksumPrefix = "xxh64:"

// maxExactInt is the largest integer magnitude a float64 holds exactly.
const maxExactInt = 1 << 53

// Entity is a single entity's fields. Values are JSON-shaped: string,
// float64, bool, nil, []any or map[string]any. Integers too large for a
// float64 decode as json.Number.
type Entity map[string]any

// UnmarshalJSON decodes numbers as float64 unless that would round an
// integer.
func (e *Entity) UnmarshalJSON(data []byte) error {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return err
	}
	for k, v := range m {
		m[k] = normalize(v)
	}
	*e = m
	return nil
}

func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if !strings.ContainsAny(x.String(), ".eE") {
			i, err := x.Int64()
			if err != nil || i > maxExactInt || i < -maxExactInt {
				return x
			}
			return float64(i)
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
	}
	return v
}

// State is the full materialized projection of one campaign.
type State map[string]map[string]Entity

// New returns an empty State.
func New() State {
	return State{}
}

// Get returns the entity of the given kind and id.
func (s State) Get(kind, id string) (Entity, bool) {
	byID, ok := s[kind]
	if !ok {
		return nil, false
	}
	e, ok := byID[id]
	return e, ok
}

// Put stores an entity, replacing any previous value.
func (s State) Put(kind, id string, e Entity) {
	byID, ok := s[kind]
	if !ok {
		byID = make(map[string]Entity)
		s[kind] = byID
	}
	byID[id] = e
}

// Delete removes an entity. Empty kinds are dropped so that an emptied kind
// and a never-populated kind serialize identically.
func (s State) Delete(kind, id string) {
	byID, ok := s[kind]
	if !ok {
		return
	}
	delete(byID, id)
	if len(byID) == 0 {
		delete(s, kind)
	}
}

// Kinds returns entity kinds in sorted order.
func (s State) Kinds() []string {
	kinds := make([]string, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// IDs returns the entity ids of a kind in sorted order.
func (s State) IDs(kind string) []string {
	byID := s[kind]
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of entities of a kind.
func (s State) Count(kind string) int {
	return len(s[kind])
}

// Encode serializes a State canonically. encoding/json sorts map keys, so the
// same State always yields the same bytes.
func Encode(s State) ([]byte, error) {
	if s == nil {
		s = New()
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding state: %w", err)
	}
	return data, nil
}

// Decode parses bytes produced by Encode.
func Decode(data []byte) (State, error) {
	s := New()
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	for kind, byID := range s {
		if len(byID) == 0 {
			delete(s, kind)
		}
	}
	return s, nil
}

// Checksum returns the content hash of serialized state bytes.
func Checksum(data []byte) string {
	return fmt.Sprintf("%s%016x", ChecksumPrefix, xxhash.Sum64(data))
}

// ValidChecksum reports whether sum looks like a value produced by Checksum.
func ValidChecksum(sum string) bool {
	hex, ok := strings.CutPrefix(sum, ChecksumPrefix)
	return ok && len(hex) == 16
}
