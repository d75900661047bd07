// registry.go -- Read-only set of enabled providers.
package provider

// Registry holds the resolved descriptors in prompt order.
// It is never mutated after construction and is safe for concurrent use.
type Registry struct {
	descriptors []Descriptor
	byID        map[ID]Descriptor
	byPath      map[string]Descriptor
}

// NewRegistry builds a registry from already-resolved descriptors.
// Duplicate ids keep the first occurrence. Azure AD v2 replaces v1.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{
		byID:   make(map[ID]Descriptor, len(descs)),
		byPath: make(map[string]Descriptor, len(descs)),
	}

	hasV2 := false
	for _, d := range descs {
		if d.ID == AzureADv2 {
			hasV2 = true
		}
	}

	for _, d := range descs {
		if d.ID == AzureADv1 && hasV2 {
			logDropped(d)
			continue
		}
		if _, dup := r.byID[d.ID]; dup {
			continue
		}
		r.descriptors = append(r.descriptors, d)
		r.byID[d.ID] = d
		r.byPath[d.ID.Path()] = d
	}
	return r
}

// Descriptors returns the enabled providers in prompt order.
func (r *Registry) Descriptors() []Descriptor {
	out := make([]Descriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Len returns the number of enabled providers.
func (r *Registry) Len() int { return len(r.descriptors) }

// Get looks a provider up by id.
func (r *Registry) Get(id ID) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// ByPath looks a provider up by its /auth/{path} segment.
func (r *Registry) ByPath(path string) (Descriptor, bool) {
	d, ok := r.byPath[path]
	return d, ok
}

// ButtonText returns the prompt label for id, or the id itself when unknown.
func (r *Registry) ButtonText(id ID) string {
	if d, ok := r.byID[id]; ok && d.ButtonText != "" {
		return d.ButtonText
	}
	return string(id)
}
