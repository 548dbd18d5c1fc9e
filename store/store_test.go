package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name    string `json:"name"`
	Retries int    `json:"retries"`
}

func TestPutAndGet(t *testing.T) {
	s := NewKVStore()

	require.NoError(t, s.Put("greeting", "hello"))
	require.NoError(t, s.Put("count", 42))
	require.NoError(t, s.Put("config", testConfig{Name: "main", Retries: 3}))

	greeting, err := Get[string](s, "greeting")
	assert.NoError(t, err)
	assert.Equal(t, "hello", greeting)

	count, err := Get[int](s, "count")
	assert.NoError(t, err)
	assert.Equal(t, 42, count)

	cfg, err := Get[testConfig](s, "config")
	assert.NoError(t, err)
	assert.Equal(t, "main", cfg.Name)
}

func TestGetTypeMismatch(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("count", 42))

	_, err := Get[string](s, "count")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestGetMissingKey(t *testing.T) {
	s := NewKVStore()

	_, err := Get[string](s, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetInterfaceType(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("err", assert.AnError))

	got, err := Get[error](s, "err")
	assert.NoError(t, err)
	assert.Equal(t, assert.AnError, got)
}

func TestGetOrDefault(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("present", "value"))

	present, err := GetOrDefault(s, "present", "fallback")
	assert.NoError(t, err)
	assert.Equal(t, "value", present)

	absent, err := GetOrDefault(s, "absent", "fallback")
	assert.NoError(t, err)
	assert.Equal(t, "fallback", absent)
}

func TestTTLExpiry(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.PutWithTTL("ephemeral", "soon gone", time.Millisecond))

	time.Sleep(10 * time.Millisecond)

	_, err := Get[string](s, "ephemeral")
	assert.ErrorIs(t, err, ErrExpired)

	// Expired entries disappear from key listings too.
	assert.NotContains(t, s.ListKeys(), "ephemeral")
}

func TestDeleteAndClear(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("a", 1))
	require.NoError(t, s.Put("b", 2))

	assert.True(t, s.Delete("a"))
	assert.False(t, s.Delete("a"))
	assert.Equal(t, 1, s.Count())

	s.Clear()
	assert.Equal(t, 0, s.Count())
}

func TestListKeysSorted(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("zebra", 1))
	require.NoError(t, s.Put("apple", 2))
	require.NoError(t, s.Put("mango", 3))

	assert.Equal(t, []string{"apple", "mango", "zebra"}, s.ListKeys())
}

func TestMetadataTagsAndProperties(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("tagged", "value"))

	require.NoError(t, s.AddTag("tagged", "system"))
	has, err := s.HasTag("tagged", "system")
	assert.NoError(t, err)
	assert.True(t, has)

	assert.Equal(t, []string{"tagged"}, s.FindKeysByTag("system"))

	require.NoError(t, s.RemoveTag("tagged", "system"))
	has, err = s.HasTag("tagged", "system")
	assert.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.SetProperty("tagged", "status", "running"))
	status, err := s.GetProperty("tagged", "status")
	assert.NoError(t, err)
	assert.Equal(t, "running", status)

	assert.Equal(t, []string{"tagged"}, s.FindKeysByProperty("status", "running"))
}

func TestSetPropertyOnUnknownKey(t *testing.T) {
	s := NewKVStore()

	// Status can be tracked for components that were never stored.
	require.NoError(t, s.SetProperty("phantom", "status", "pending"))
	status, err := s.GetProperty("phantom", "status")
	assert.NoError(t, err)
	assert.Equal(t, "pending", status)
}

func TestPutPreservesMetadata(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("key", "v1"))
	require.NoError(t, s.AddTag("key", "keep-me"))

	// Overwriting the value without metadata keeps the existing tags.
	require.NoError(t, s.Put("key", "v2"))
	has, err := s.HasTag("key", "keep-me")
	assert.NoError(t, err)
	assert.True(t, has)
}

func TestCopyFrom(t *testing.T) {
	source := NewKVStore()
	require.NoError(t, source.Put("shared", "source-value"))
	require.NoError(t, source.Put("only-source", 1))

	dest := NewKVStore()
	require.NoError(t, dest.Put("shared", "dest-value"))

	copied, err := dest.CopyFrom(source)
	assert.NoError(t, err)
	assert.Equal(t, 1, copied)

	// Existing keys are not overwritten.
	shared, err := Get[string](dest, "shared")
	assert.NoError(t, err)
	assert.Equal(t, "dest-value", shared)
}

func TestCopyFromWithOverwrite(t *testing.T) {
	source := NewKVStore()
	require.NoError(t, source.Put("shared", "source-value"))
	require.NoError(t, source.Put("only-source", 1))

	dest := NewKVStore()
	require.NoError(t, dest.Put("shared", "dest-value"))

	copied, overwritten, err := dest.CopyFromWithOverwrite(source)
	assert.NoError(t, err)
	assert.Equal(t, 2, copied)
	assert.Equal(t, 1, overwritten)

	shared, err := Get[string](dest, "shared")
	assert.NoError(t, err)
	assert.Equal(t, "source-value", shared)
}

func TestClone(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("key", "original"))

	c := s.Clone()
	require.NoError(t, c.Put("key", "changed"))

	original, err := Get[string](s, "key")
	assert.NoError(t, err)
	assert.Equal(t, "original", original)
}

func TestExportAll(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("a", 1))
	require.NoError(t, s.Put("b", "two"))

	exported := s.ExportAll()
	assert.Equal(t, map[string]interface{}{"a": 1, "b": "two"}, exported)
}

func TestGetTypeSchema(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("config", testConfig{Name: "main"}))

	schema, err := s.GetTypeSchema("config")
	require.NoError(t, err)

	schemaMap, ok := schema.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "object", schemaMap["type"])

	props, ok := schemaMap["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "name")
	assert.Contains(t, props, "retries")
}

func TestListTypes(t *testing.T) {
	s := NewKVStore()
	require.NoError(t, s.Put("a", 1))
	require.NoError(t, s.Put("b", "two"))
	require.NoError(t, s.Put("c", 3))

	types := s.ListTypes()
	assert.Equal(t, []string{"int", "string"}, types)
}
