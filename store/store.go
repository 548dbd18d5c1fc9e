package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
)

// Errors returned by store operations.
var (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrExpired indicates the entry existed but its TTL has elapsed.
	ErrExpired = errors.New("entry expired")

	// ErrTypeMismatch indicates the stored type does not match the requested type.
	ErrTypeMismatch = errors.New("type mismatch")
)

// entry is the internal representation of a stored value.
type entry struct {
	typ       reflect.Type
	typeKind  reflect.Kind
	value     any
	expiresAt *time.Time
	metadata  *Metadata
}

func (e entry) expired() bool {
	return e.expiresAt != nil && time.Now().After(*e.expiresAt)
}

// KVStore is a threadsafe, type-aware in-memory store.
type KVStore struct {
	mu   sync.RWMutex
	data map[string]entry
}

// NewKVStore constructs an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]entry)}
}

// Put stores any Go value under key, capturing its concrete type.
func (s *KVStore) Put(key string, value any) error {
	return s.PutWithTTLAndMetadata(key, value, 0, nil)
}

// PutWithMetadata stores a value with metadata.
func (s *KVStore) PutWithMetadata(key string, value any, metadata *Metadata) error {
	return s.PutWithTTLAndMetadata(key, value, 0, metadata)
}

// PutWithTTL stores a value with a time-to-live duration.
// If ttl is 0 or negative, the entry will not expire.
func (s *KVStore) PutWithTTL(key string, value any, ttl time.Duration) error {
	return s.PutWithTTLAndMetadata(key, value, ttl, nil)
}

// PutWithTTLAndMetadata stores any Go value with both TTL and metadata.
// When metadata is nil, any existing metadata for the key is preserved.
func (s *KVStore) PutWithTTLAndMetadata(key string, value any, ttl time.Duration, metadata *Metadata) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	var expiresAt *time.Time
	if ttl > 0 {
		exp := time.Now().Add(ttl)
		expiresAt = &exp
	}

	var typ reflect.Type
	kind := reflect.Invalid
	if value != nil {
		typ = reflect.TypeOf(value)
		kind = typ.Kind()
	}

	s.mu.Lock()
	meta := metadata
	if meta == nil {
		if existing, exists := s.data[key]; exists && existing.metadata != nil {
			meta = existing.metadata
			meta.UpdatedAt = time.Now()
		}
	}
	s.data[key] = entry{typ: typ, typeKind: kind, value: value, expiresAt: expiresAt, metadata: meta}
	s.mu.Unlock()
	return nil
}

// Get retrieves a value of type T for the given key.
// Requesting an interface type succeeds when the stored value implements it;
// any other type must match the stored concrete type exactly.
func Get[T any](s *KVStore, key string) (T, error) {
	var zero T
	if key == "" {
		return zero, errors.New("key cannot be empty")
	}

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return zero, ErrNotFound
	}

	if e.expired() {
		s.Delete(key)
		return zero, ErrExpired
	}

	want := reflect.TypeOf((*T)(nil)).Elem()

	if want.Kind() == reflect.Interface {
		if e.typ == nil || !e.typ.Implements(want) {
			return zero, fmt.Errorf("%w: wanted interface %v, got %v which doesn't implement it",
				ErrTypeMismatch, want, e.typ)
		}
		result, ok := e.value.(T)
		if !ok {
			return zero, fmt.Errorf("type assertion failed: %T cannot be converted to requested interface", e.value)
		}
		return result, nil
	}

	if e.typ != want {
		return zero, fmt.Errorf("%w: wanted %v, got %v", ErrTypeMismatch, want, e.typ)
	}

	result, ok := e.value.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion failed: %T cannot be converted to %v", e.value, want)
	}

	return result, nil
}

// GetOrDefault retrieves a value of type T, falling back to defaultValue when
// the key is absent or expired.
func GetOrDefault[T any](s *KVStore, key string, defaultValue T) (T, error) {
	value, err := Get[T](s, key)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrExpired) {
		return defaultValue, nil
	}
	return value, err
}

// Delete removes a key from the store. It reports whether the key existed.
func (s *KVStore) Delete(key string) bool {
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok
}

// Clear removes all entries from the store.
func (s *KVStore) Clear() {
	s.mu.Lock()
	s.data = make(map[string]entry)
	s.mu.Unlock()
}

// ListKeys returns all non-expired keys in sorted order.
func (s *KVStore) ListKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if e.expired() {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of entries in the store.
func (s *KVStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// ListTypes returns the sorted set of concrete type names stored.
func (s *KVStore) ListTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range s.data {
		if e.typ != nil {
			seen[e.typ.String()] = struct{}{}
		}
	}
	types := make([]string, 0, len(seen))
	for t := range seen {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// GetMetadata returns the metadata for a key, creating empty metadata on
// first access.
func (s *KVStore) GetMetadata(key string) (*Metadata, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}

	if e.expired() {
		delete(s.data, key)
		return nil, ErrExpired
	}

	if e.metadata == nil {
		e.metadata = NewMetadata()
		s.data[key] = e
	}

	return e.metadata, nil
}

// SetMetadata sets or replaces the metadata for a key.
func (s *KVStore) SetMetadata(key string, metadata *Metadata) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}
	if metadata == nil {
		return errors.New("metadata cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return ErrNotFound
	}
	if e.expired() {
		delete(s.data, key)
		return ErrExpired
	}

	e.metadata = metadata
	s.data[key] = e
	return nil
}

// AddTag adds a tag to the metadata for a key.
func (s *KVStore) AddTag(key string, tag string) error {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return err
	}
	meta.AddTag(tag)
	return nil
}

// RemoveTag removes a tag from the metadata for a key.
func (s *KVStore) RemoveTag(key string, tag string) error {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return err
	}
	meta.RemoveTag(tag)
	return nil
}

// HasTag checks if a key's metadata has a specific tag.
func (s *KVStore) HasTag(key string, tag string) (bool, error) {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return false, err
	}
	return meta.HasTag(tag), nil
}

// FindKeysByTag returns all keys whose metadata carries the given tag.
func (s *KVStore) FindKeysByTag(tag string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k, e := range s.data {
		if e.expired() || e.metadata == nil {
			continue
		}
		if e.metadata.HasTag(tag) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// SetProperty sets a metadata property for a key, creating the entry's
// metadata if needed. Unknown keys get an empty entry so that status can be
// tracked for components that were never explicitly stored.
func (s *KVStore) SetProperty(key string, propertyKey string, propertyValue interface{}) error {
	if key == "" {
		return errors.New("key cannot be empty")
	}

	s.mu.Lock()
	e, ok := s.data[key]
	if !ok {
		e = entry{typeKind: reflect.Invalid, metadata: NewMetadata()}
		s.data[key] = e
	}
	if e.metadata == nil {
		e.metadata = NewMetadata()
		s.data[key] = e
	}
	meta := e.metadata
	s.mu.Unlock()

	meta.SetProperty(propertyKey, propertyValue)
	return nil
}

// GetProperty returns a metadata property for a key.
func (s *KVStore) GetProperty(key string, propertyKey string) (interface{}, error) {
	meta, err := s.GetMetadata(key)
	if err != nil {
		return nil, err
	}
	v, ok := meta.GetProperty(propertyKey)
	if !ok {
		return nil, fmt.Errorf("property '%s' not found for key '%s'", propertyKey, key)
	}
	return v, nil
}

// FindKeysByProperty returns all keys whose metadata property equals the
// given value.
func (s *KVStore) FindKeysByProperty(propertyKey string, propertyValue interface{}) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k, e := range s.data {
		if e.expired() || e.metadata == nil {
			continue
		}
		if v, ok := e.metadata.GetProperty(propertyKey); ok && reflect.DeepEqual(v, propertyValue) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// CopyFrom copies all entries from source that do not already exist in s.
// It returns the number of entries copied.
func (s *KVStore) CopyFrom(source *KVStore) (int, error) {
	if source == nil {
		return 0, errors.New("source store cannot be nil")
	}

	source.mu.RLock()
	snapshot := make(map[string]entry, len(source.data))
	for k, e := range source.data {
		snapshot[k] = e
	}
	source.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := 0
	for k, e := range snapshot {
		if e.expired() {
			continue
		}
		if _, exists := s.data[k]; exists {
			continue
		}
		s.data[k] = entry{typ: e.typ, typeKind: e.typeKind, value: e.value, expiresAt: e.expiresAt, metadata: e.metadata.clone()}
		copied++
	}
	return copied, nil
}

// CopyFromWithOverwrite copies all entries from source into s, overwriting
// existing keys. It returns how many entries were copied and how many of
// those overwrote an existing key.
func (s *KVStore) CopyFromWithOverwrite(source *KVStore) (copied int, overwritten int, err error) {
	if source == nil {
		return 0, 0, errors.New("source store cannot be nil")
	}

	source.mu.RLock()
	snapshot := make(map[string]entry, len(source.data))
	for k, e := range source.data {
		snapshot[k] = e
	}
	source.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, e := range snapshot {
		if e.expired() {
			continue
		}
		if _, exists := s.data[k]; exists {
			overwritten++
		}
		s.data[k] = entry{typ: e.typ, typeKind: e.typeKind, value: e.value, expiresAt: e.expiresAt, metadata: e.metadata.clone()}
		copied++
	}
	return copied, overwritten, nil
}

// Clone returns an independent copy of the store.
func (s *KVStore) Clone() *KVStore {
	c := NewKVStore()
	c.CopyFromWithOverwrite(s)
	return c
}

// ExportAll returns a snapshot of every non-expired entry's value keyed by
// its store key. The snapshot is suitable for JSON serialization and is used
// when reporting a run's final store.
func (s *KVStore) ExportAll() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.data))
	for k, e := range s.data {
		if e.expired() || e.value == nil {
			continue
		}
		out[k] = e.value
	}
	return out
}

// GetTypeSchema returns a JSON schema describing the concrete type stored
// under key.
func (s *KVStore) GetTypeSchema(key string) (interface{}, error) {
	if key == "" {
		return nil, errors.New("key cannot be empty")
	}

	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if e.expired() {
		s.Delete(key)
		return nil, ErrExpired
	}
	if e.typ == nil {
		return nil, fmt.Errorf("key '%s' holds a nil value with no type", key)
	}

	return TypeToSchema(e.typ), nil
}

// TypeToSchema converts a reflect.Type to a JSON schema map.
func TypeToSchema(t reflect.Type) interface{} {
	instance := reflect.New(t).Interface()
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}

	schema := reflector.Reflect(instance)

	// Round-trip through JSON to get a plain map.
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}

	var schemaMap map[string]interface{}
	if err := json.Unmarshal(data, &schemaMap); err != nil {
		return map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		}
	}

	if _, exists := schemaMap["type"]; !exists {
		schemaMap["type"] = "object"
	}
	if _, exists := schemaMap["properties"]; !exists {
		schemaMap["properties"] = map[string]interface{}{}
	}

	return schemaMap
}
