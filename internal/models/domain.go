package models

import (
	"encoding/json"
	"fmt"
)

// Term is one server-side filter criterion: [field, operator, value].
type Term struct {
	Field    string
	Operator string
	Value    any
}

// Domain is a conjunction of filter terms, serialized as a JSON array of
// triples.
type Domain []Term

// EmptyDomainKey is the cache key of the unfiltered view.
const EmptyDomainKey = "[]"

func (t Term) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{t.Field, t.Operator, t.Value})
}

func (t *Term) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("domain term: expected 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &t.Field); err != nil {
		return fmt.Errorf("domain term field: %w", err)
	}
	if err := json.Unmarshal(raw[1], &t.Operator); err != nil {
		return fmt.Errorf("domain term operator: %w", err)
	}
	var value any
	if err := json.Unmarshal(raw[2], &value); err != nil {
		return fmt.Errorf("domain term value: %w", err)
	}
	t.Value = value
	return nil
}

// Key returns the serialized form used to key channel caches.
func (d Domain) Key() string {
	if len(d) == 0 {
		return EmptyDomainKey
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%v", []Term(d))
	}
	return string(data)
}

// ParseDomain decodes a JSON domain, treating empty input as the empty
// domain.
func ParseDomain(s string) (Domain, error) {
	if s == "" {
		return nil, nil
	}
	var d Domain
	if err := json.Unmarshal([]byte(s), &d); err != nil {
		return nil, fmt.Errorf("parse domain: %w", err)
	}
	return d, nil
}
