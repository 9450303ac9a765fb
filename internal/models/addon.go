package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Manifest is an addon manifest document.
//
// The raw document is retained so that a manifest read from the remote API or the desired
// state file is written back byte-for-byte, including members this type does not model.
type Manifest struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Types       []string `json:"types,omitempty"`
	Resources   []any    `json:"resources,omitempty"`
	Catalogs    []any    `json:"catalogs,omitempty"`
	IDPrefixes  []string `json:"idPrefixes,omitempty"`

	raw json.RawMessage
}

type manifestFields Manifest

// UnmarshalJSON decodes the modeled fields and keeps the raw document.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var f manifestFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*m = Manifest(f)
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the raw document when one was decoded.
func (m Manifest) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(manifestFields(m))
}

// Fields returns the manifest as a generic map with the modeled keys always present.
func (m Manifest) Fields() map[string]any {
	fields := map[string]any{
		"id":          m.ID,
		"name":        m.Name,
		"version":     m.Version,
		"description": m.Description,
		"types":       toAnySlice(m.Types),
		"resources":   nonNil(m.Resources),
		"catalogs":    nonNil(m.Catalogs),
		"idPrefixes":  toAnySlice(m.IDPrefixes),
	}
	if len(m.raw) == 0 {
		return fields
	}

	var extra map[string]any
	dec := json.NewDecoder(bytes.NewReader(m.raw))
	if err := dec.Decode(&extra); err != nil {
		return fields
	}
	for k, v := range extra {
		if _, modeled := fields[k]; modeled && v == nil {
			continue
		}
		fields[k] = v
	}
	return fields
}

// Valid reports whether the manifest carries the members required to identify it.
func (m Manifest) Valid() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("manifest has no id")
	}
	return nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func nonNil(in []any) []any {
	if in == nil {
		return []any{}
	}
	return in
}

// Flags are the capability flags attached to an installed addon.
type Flags struct {
	Official  bool `json:"official"`
	Protected bool `json:"protected"`
}

// Fields returns the flags as a generic map.
func (f Flags) Fields() map[string]any {
	return map[string]any{"official": f.Official, "protected": f.Protected}
}

// Classification is the reconciliation class of an installed addon.
type Classification int

const (
	Unclassified Classification = iota
	Default
	PreservedVariant
	CustomDesired
	CustomUndesired
)

func (c Classification) String() string {
	switch c {
	case Default:
		return "default"
	case PreservedVariant:
		return "preserved"
	case CustomDesired:
		return "desired"
	case CustomUndesired:
		return "undesired"
	default:
		return "unclassified"
	}
}

// AddonDescriptor is one addon: where it is served from, its manifest, and its flags.
type AddonDescriptor struct {
	TransportURL string         `json:"transportUrl"`
	Manifest     Manifest       `json:"manifest"`
	Flags        Flags          `json:"flags"`
	Class        Classification `json:"-"`
}

// Key is the canonical addon name derived from manifest content.
//
// Identical logical addons may be served from different URLs per account, so the URL is never used.
func (a AddonDescriptor) Key() string {
	return a.Manifest.ID
}

// DisplayName returns the human-readable manifest name, falling back to the key.
func (a AddonDescriptor) DisplayName() string {
	if a.Manifest.Name != "" {
		return a.Manifest.Name
	}
	if a.Manifest.ID != "" {
		return a.Manifest.ID
	}
	return a.TransportURL
}

// Ref returns the compact reference used in reports.
func (a AddonDescriptor) Ref() AddonRef {
	return AddonRef{ID: a.Key(), Name: a.DisplayName(), TransportURL: a.TransportURL}
}

// AddonRef identifies an addon in reports and removal calls.
type AddonRef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	TransportURL string `json:"transport_url"`
}

func (r AddonRef) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.ID
}
