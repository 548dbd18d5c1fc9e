package release

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `namespace: acme
name: cmdb
version: 1.0.0
readme: README.md
authors:
  - Release Team <release@example.com>
description: CMDB automation content
license:
  - GPL-3.0-or-later
tags:
  - infrastructure
dependencies:
  community.general: ">=5.0.0"
repository: https://example.com/acme/cmdb
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return dir
}

func TestLoadManifest(t *testing.T) {
	dir := writeManifest(t, testManifest)

	m, err := LoadManifestFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, "acme", m.Namespace)
	assert.Equal(t, "cmdb", m.Name)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, "acme.cmdb", m.FQN())
	assert.Equal(t, ">=5.0.0", m.Dependencies["community.general"])
	assert.NoError(t, m.Validate())
}

func TestLoadManifestMissingFile(t *testing.T) {
	_, err := LoadManifestFromDir(t.TempDir())
	assert.Error(t, err)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErr  string
	}{
		{
			name:     "missing namespace",
			manifest: Manifest{Name: "cmdb"},
			wantErr:  "namespace",
		},
		{
			name:     "missing name",
			manifest: Manifest{Namespace: "acme"},
			wantErr:  "name",
		},
		{
			name:     "uppercase namespace",
			manifest: Manifest{Namespace: "Acme", Name: "cmdb"},
			wantErr:  "invalid namespace",
		},
		{
			name:     "name with dash",
			manifest: Manifest{Namespace: "acme", Name: "my-collection"},
			wantErr:  "invalid collection name",
		},
		{
			name:     "bad version",
			manifest: Manifest{Namespace: "acme", Name: "cmdb", Version: "one"},
			wantErr:  "invalid manifest version",
		},
		{
			name:     "valid",
			manifest: Manifest{Namespace: "acme", Name: "cmdb_tools", Version: "1.2.3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestArchiveName(t *testing.T) {
	m := &Manifest{Namespace: "acme", Name: "cmdb"}
	assert.Equal(t, "acme-cmdb-1.2.3.tar.gz", m.ArchiveName("1.2.3"))
}
