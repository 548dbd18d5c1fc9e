package store

import "time"

// Metadata holds descriptive information attached to a store entry.
// It is used by the pipeline engine to track entity status, ordering and
// provenance without touching the entry's value.
type Metadata struct {
	// Description is a human-readable description of the entry
	Description string `json:"description,omitempty"`

	// Tags for categorization and filtering
	Tags []string `json:"tags,omitempty"`

	// Properties are arbitrary key-value annotations
	Properties map[string]interface{} `json:"properties,omitempty"`

	// CreatedAt is when the metadata was created
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is when the metadata was last modified
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewMetadata creates an empty Metadata with timestamps set to now.
func NewMetadata() *Metadata {
	now := time.Now()
	return &Metadata{
		Tags:       []string{},
		Properties: make(map[string]interface{}),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AddTag adds a tag if it is not already present.
func (m *Metadata) AddTag(tag string) {
	for _, t := range m.Tags {
		if t == tag {
			return
		}
	}
	m.Tags = append(m.Tags, tag)
	m.UpdatedAt = time.Now()
}

// RemoveTag removes a tag if present.
func (m *Metadata) RemoveTag(tag string) {
	for i, t := range m.Tags {
		if t == tag {
			m.Tags = append(m.Tags[:i], m.Tags[i+1:]...)
			m.UpdatedAt = time.Now()
			return
		}
	}
}

// HasTag reports whether the metadata carries the given tag.
func (m *Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SetProperty sets an arbitrary property value.
func (m *Metadata) SetProperty(key string, value interface{}) {
	if m.Properties == nil {
		m.Properties = make(map[string]interface{})
	}
	m.Properties[key] = value
	m.UpdatedAt = time.Now()
}

// GetProperty returns a property value and whether it exists.
func (m *Metadata) GetProperty(key string) (interface{}, bool) {
	if m.Properties == nil {
		return nil, false
	}
	v, ok := m.Properties[key]
	return v, ok
}

// clone returns a copy of the metadata with copied tag and property collections.
func (m *Metadata) clone() *Metadata {
	if m == nil {
		return nil
	}
	c := &Metadata{
		Description: m.Description,
		Tags:        make([]string, len(m.Tags)),
		Properties:  make(map[string]interface{}, len(m.Properties)),
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	copy(c.Tags, m.Tags)
	for k, v := range m.Properties {
		c.Properties[k] = v
	}
	return c
}
