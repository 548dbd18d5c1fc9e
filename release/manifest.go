package release

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the expected name of the collection manifest at the
// root of a collection directory.
const ManifestFileName = "galaxy.yml"

// namePattern constrains collection namespaces and names.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Manifest describes a collection: its identity, metadata and dependencies.
// It mirrors the galaxy.yml format.
type Manifest struct {
	Namespace    string            `yaml:"namespace"`
	Name         string            `yaml:"name"`
	Version      string            `yaml:"version"`
	Readme       string            `yaml:"readme,omitempty"`
	Authors      []string          `yaml:"authors,omitempty"`
	Description  string            `yaml:"description,omitempty"`
	License      []string          `yaml:"license,omitempty"`
	Tags         []string          `yaml:"tags,omitempty"`
	Dependencies map[string]string `yaml:"dependencies,omitempty"`
	Repository   string            `yaml:"repository,omitempty"`
	Homepage     string            `yaml:"homepage,omitempty"`
	Issues       string            `yaml:"issues,omitempty"`
}

// LoadManifest reads and parses a collection manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	return &m, nil
}

// LoadManifestFromDir loads the manifest from a collection directory.
func LoadManifestFromDir(dir string) (*Manifest, error) {
	return LoadManifest(filepath.Join(dir, ManifestFileName))
}

// Validate checks the manifest's identity fields.
func (m *Manifest) Validate() error {
	if m.Namespace == "" {
		return fmt.Errorf("manifest is missing a namespace")
	}
	if !namePattern.MatchString(m.Namespace) {
		return fmt.Errorf("invalid namespace '%s': must match %s", m.Namespace, namePattern)
	}
	if m.Name == "" {
		return fmt.Errorf("manifest is missing a name")
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("invalid collection name '%s': must match %s", m.Name, namePattern)
	}
	if m.Version != "" && !versionPattern.MatchString(m.Version) {
		return fmt.Errorf("invalid manifest version '%s'", m.Version)
	}
	return nil
}

// FQN returns the namespace-qualified collection name.
func (m *Manifest) FQN() string {
	return m.Namespace + "." + m.Name
}

// ArchiveName returns the file name of the archive built for the given
// version.
func (m *Manifest) ArchiveName(version string) string {
	return fmt.Sprintf("%s-%s-%s.tar.gz", m.Namespace, m.Name, version)
}
