// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package rewrite

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Pair is a single old->new URL replacement.
type Pair struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Mapping is an ordered list of URL replacements. Order matters: earlier
// pairs are applied first and later pairs see their output.
type Mapping []Pair

// NewMapping builds a Mapping from pairs, keeping the first occurrence of
// any duplicated old URL.
func NewMapping(pairs ...Pair) Mapping {
	seen := make(map[string]bool, len(pairs))
	m := make(Mapping, 0, len(pairs))
	for _, p := range pairs {
		if seen[p.Old] {
			continue
		}
		seen[p.Old] = true
		m = append(m, p)
	}
	return m
}

// Problem describes why the pair cannot be applied, or returns "" when it
// can.
func (p Pair) Problem() string {
	switch {
	case !IsURLLike(p.Old):
		return "old value is not a URL"
	case p.New == "":
		return "new URL is empty"
	}
	return ""
}

// Valid splits the mapping into pairs that can be applied and the rejected
// remainder.
func (m Mapping) Valid() (valid Mapping, rejected []Pair) {
	valid = make(Mapping, 0, len(m))
	for _, p := range m {
		if p.Problem() == "" {
			valid = append(valid, p)
		} else {
			rejected = append(rejected, p)
		}
	}
	return valid, rejected
}

// Invert swaps old and new in every pair, preserving order.
func (m Mapping) Invert() Mapping {
	inv := make(Mapping, len(m))
	for i, p := range m {
		inv[i] = Pair{Old: p.New, New: p.Old}
	}
	return inv
}

// UnmarshalJSON accepts either a list of {"old","new"} objects or a plain
// JSON object of old->new strings. Object key order is preserved.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}

	if data[0] == '[' {
		var pairs []Pair
		if err := json.Unmarshal(data, &pairs); err != nil {
			return fmt.Errorf("decode mapping list: %w", err)
		}
		*m = NewMapping(pairs...)
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("decode mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode mapping: expected object or array")
	}

	var pairs []Pair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode mapping key: %w", err)
		}
		key, _ := keyTok.(string)

		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("decode mapping value for %q: %w", key, err)
		}
		pairs = append(pairs, Pair{Old: key, New: val})
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode mapping: %w", err)
	}

	*m = NewMapping(pairs...)
	return nil
}
