package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRelease(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/releases", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 12, "tag_name": "v1.0.0", "name": "Release 1.0.0"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-token")
	rel, err := client.CreateRelease(context.Background(), "v1.0.0", "Release 1.0.0", "notes")
	require.NoError(t, err)

	assert.Equal(t, int64(12), rel.ID)
	assert.Equal(t, "v1.0.0", rel.TagName)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "v1.0.0", gotBody["tag_name"])
	assert.Equal(t, "notes", gotBody["body"])
}

func TestGetReleaseByTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/releases/tags/v1.0.0", r.URL.Path)
		fmt.Fprint(w, `{"id": 3, "tag_name": "v1.0.0"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	rel, err := client.GetReleaseByTag(context.Background(), "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rel.ID)
}

func TestGetReleaseByTagNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	_, err := client.GetReleaseByTag(context.Background(), "v9.9.9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestUploadAsset(t *testing.T) {
	dir := t.TempDir()
	assetPath := filepath.Join(dir, "acme-cmdb-1.0.0.tar.gz")
	require.NoError(t, os.WriteFile(assetPath, []byte("archive-bytes"), 0o644))

	var gotName, gotContentType string
	var gotLength int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/releases/5/assets", r.URL.Path)
		gotName = r.URL.Query().Get("name")
		gotContentType = r.Header.Get("Content-Type")
		gotLength = r.ContentLength

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": 42, "name": %q, "size": %d}`, gotName, gotLength)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	asset, err := client.UploadAsset(context.Background(), 5, assetPath)
	require.NoError(t, err)

	assert.Equal(t, int64(42), asset.ID)
	assert.Equal(t, "acme-cmdb-1.0.0.tar.gz", gotName)
	// The exact type depends on the host's mime table; the fallback is
	// application/octet-stream.
	assert.NotEmpty(t, gotContentType)
	assert.Equal(t, int64(len("archive-bytes")), gotLength)
}

func TestAPIErrorSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Validation Failed"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	_, err := client.CreateRelease(context.Background(), "v1.0.0", "", "")
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "Validation Failed")
	assert.False(t, IsNotFound(err))
}
