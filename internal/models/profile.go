package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// Profile JSON keys with meaning to the matcher. Every other key is a free-form attribute.
const (
	ProfileKeyID      = "id"
	ProfileKeyRawText = "raw_profile_text"
)

var (
	// ErrProfileNotObject is returned when a profile record is not a JSON object.
	ErrProfileNotObject = errors.New("profile must be a JSON object")
	// ErrProfileIDType is returned when the profile id is neither a string nor a number.
	ErrProfileIDType = errors.New("profile id must be a string or a number")
	// ErrProfileRawTextType is returned when raw_profile_text is not a string.
	ErrProfileRawTextType = errors.New("raw_profile_text must be a string")
)

// Profile is one corpus record. It is immutable after load: Attributes holds the
// record exactly as read (including id and raw_profile_text) and is what gets
// serialized back to clients.
type Profile struct {
	ID             string `validate:"required"`
	RawProfileText string `validate:"required"`
	Attributes     map[string]any
}

// UnmarshalJSON decodes a profile object, keeping numbers as json.Number so the
// record round-trips without float rounding.
func (p *Profile) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var attrs map[string]any
	if err := dec.Decode(&attrs); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}

	if attrs == nil {
		return ErrProfileNotObject
	}

	switch id := attrs[ProfileKeyID].(type) {
	case nil:
		p.ID = ""
	case string:
		p.ID = id
	case json.Number:
		p.ID = id.String()
	default:
		return ErrProfileIDType
	}

	switch raw := attrs[ProfileKeyRawText].(type) {
	case nil:
		p.RawProfileText = ""
	case string:
		p.RawProfileText = raw
	default:
		return ErrProfileRawTextType
	}

	p.Attributes = attrs

	return nil
}

// MarshalJSON writes the profile's attributes as loaded.
func (p Profile) MarshalJSON() ([]byte, error) {
	attrs := p.Attributes
	if attrs == nil {
		attrs = map[string]any{
			ProfileKeyID:      p.ID,
			ProfileKeyRawText: p.RawProfileText,
		}
	}

	out, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	return out, nil
}

// Attribute returns a free-form attribute by key.
func (p Profile) Attribute(key string) (any, bool) {
	v, ok := p.Attributes[key]

	return v, ok
}

// Clone returns a copy whose attribute map is independent of p's.
func (p Profile) Clone() Profile {
	p.Attributes = maps.Clone(p.Attributes)

	return p
}
