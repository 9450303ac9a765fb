// package models defines the data model for addon reconciliation
package models

import (
	"fmt"
	"time"
)

// CredentialRecord is one account row of the credential store.
//
// Token is the cached session key; empty means the account must authenticate fresh.
type CredentialRecord struct {
	Identifier string
	Secret     string
	Token      string
}

// String never includes the secret.
func (r CredentialRecord) String() string {
	state := "no token"
	if r.Token != "" {
		state = "cached token"
	}
	return fmt.Sprintf("%s (%s)", r.Identifier, state)
}

// Session is an authenticated session owned by exactly one account workflow.
type Session struct {
	Identifier      string
	Token           string
	AuthenticatedAt time.Time
	Reused          bool // true when the cached token passed validation
}

// DesiredState maps canonical addon names to their install descriptors.
//
// It is immutable after construction and shared read-only by every account workflow.
type DesiredState struct {
	entries map[string]AddonDescriptor
	urls    map[string]int // transport URL -> number of entries served from it
	order   []string
}

// NewDesiredState builds a desired state from descriptors in install order.
//
// A later descriptor with the same canonical name replaces the earlier one in place.
func NewDesiredState(descriptors ...AddonDescriptor) (*DesiredState, error) {
	ds := &DesiredState{
		entries: make(map[string]AddonDescriptor, len(descriptors)),
		urls:    make(map[string]int, len(descriptors)),
	}

	for _, d := range descriptors {
		if err := d.Manifest.Valid(); err != nil {
			return nil, fmt.Errorf("addon %s: %w", d.TransportURL, err)
		}
		if d.TransportURL == "" {
			return nil, fmt.Errorf("addon %s: missing transport URL", d.Key())
		}

		key := d.Key()
		d.Class = CustomDesired
		if prev, ok := ds.entries[key]; ok {
			if ds.urls[prev.TransportURL]--; ds.urls[prev.TransportURL] == 0 {
				delete(ds.urls, prev.TransportURL)
			}
		} else {
			ds.order = append(ds.order, key)
		}
		ds.entries[key] = d
		ds.urls[d.TransportURL]++
	}

	return ds, nil
}

// Len returns the number of desired addons.
func (ds *DesiredState) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.order)
}

// Get returns the descriptor for a canonical name.
func (ds *DesiredState) Get(key string) (AddonDescriptor, bool) {
	if ds == nil {
		return AddonDescriptor{}, false
	}
	d, ok := ds.entries[key]
	return d, ok
}

// Has reports whether the canonical name is desired.
func (ds *DesiredState) Has(key string) bool {
	_, ok := ds.Get(key)
	return ok
}

// HasURL reports whether a desired addon is served from transportURL.
func (ds *DesiredState) HasURL(transportURL string) bool {
	if ds == nil {
		return false
	}
	return ds.urls[transportURL] > 0
}

// Descriptors returns a copy of the desired descriptors in install order.
func (ds *DesiredState) Descriptors() []AddonDescriptor {
	if ds == nil {
		return nil
	}
	out := make([]AddonDescriptor, 0, len(ds.order))
	for _, key := range ds.order {
		out = append(out, ds.entries[key])
	}
	return out
}

// Without returns a new desired state lacking the given canonical name.
func (ds *DesiredState) Without(key string) (*DesiredState, bool) {
	if !ds.Has(key) {
		return ds, false
	}
	kept := make([]AddonDescriptor, 0, ds.Len()-1)
	for _, d := range ds.Descriptors() {
		if d.Key() != key {
			kept = append(kept, d)
		}
	}
	next, _ := NewDesiredState(kept...)
	return next, true
}

// With returns a new desired state with d added or replaced.
func (ds *DesiredState) With(d AddonDescriptor) (*DesiredState, error) {
	return NewDesiredState(append(ds.Descriptors(), d)...)
}

// SkippedAddon is an installed entry left untouched because its manifest could not be resolved.
type SkippedAddon struct {
	TransportURL string `json:"transport_url"`
	Reason       string `json:"reason"`
}

// Plan is the computed diff for one account.
type Plan struct {
	Classified []AddonDescriptor // every resolved installed addon with its class set
	Remove     []AddonDescriptor
	Install    []AddonDescriptor
	Skipped    []SkippedAddon
}

// ByClass returns the classified addons of class c in installed order.
func (p *Plan) ByClass(c Classification) []AddonDescriptor {
	var out []AddonDescriptor
	for _, a := range p.Classified {
		if a.Class == c {
			out = append(out, a)
		}
	}
	return out
}

// Empty reports whether applying the plan would change nothing.
func (p *Plan) Empty() bool {
	return len(p.Remove) == 0 && len(p.Install) == 0
}
