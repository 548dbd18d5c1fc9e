package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientFetch(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(testPayload))
	}))
	defer server.Close()

	client := NewClient(Config{APIURL: server.URL, Token: "cmdb-token"})
	raw, err := client.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer cmdb-token", gotAuth)
	assert.JSONEq(t, testPayload, string(raw))
}

func TestClientFetchNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	client := NewClient(Config{APIURL: server.URL, Token: "bad-token"})
	_, err := client.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://cmdb.example.com/api/hosts")
	t.Setenv(EnvBearerToken, "token-from-env")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "https://cmdb.example.com/api/hosts", cfg.APIURL)
	assert.Equal(t, "token-from-env", cfg.Token)
}

func TestFromEnvMissingVars(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvBearerToken, "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvAPIURL)

	t.Setenv(EnvAPIURL, "https://cmdb.example.com")
	_, err = FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), EnvBearerToken)
}

func TestFromConfig(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvBearerToken, "")
	t.Setenv("CMDB_TOKEN", "token-from-config-var")

	cfg, err := FromConfig("https://cmdb.example.com/api/hosts", "CMDB_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "https://cmdb.example.com/api/hosts", cfg.APIURL)
	assert.Equal(t, "token-from-config-var", cfg.Token)

	// The CMDB environment variables win over configured values.
	t.Setenv(EnvAPIURL, "https://override.example.com")
	t.Setenv(EnvBearerToken, "token-from-env")
	cfg, err = FromConfig("https://cmdb.example.com/api/hosts", "CMDB_TOKEN")
	require.NoError(t, err)
	assert.Equal(t, "https://override.example.com", cfg.APIURL)
	assert.Equal(t, "token-from-env", cfg.Token)
}

func TestFromConfigMissingSettings(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvBearerToken, "")

	_, err := FromConfig("", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CMDB URL configured")

	_, err = FromConfig("https://cmdb.example.com", "UNSET_CMDB_TOKEN")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no CMDB bearer token configured")
}
