package release

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"
)

// EnvRef names the environment variable carrying the triggering tag ref when
// no flag is given. GITHUB_REF is honored as a fallback so the command works
// unchanged inside a hosted CI runner.
const EnvRef = "COLSHIP_REF"

// ResolveRef returns the explicit ref if non-empty, then COLSHIP_REF, then
// GITHUB_REF. An empty result means no ref is available.
func ResolveRef(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if ref := os.Getenv(EnvRef); ref != "" {
		return ref
	}
	return os.Getenv("GITHUB_REF")
}

// versionPattern accepts semver-style versions with an optional pre-release
// suffix.
var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+(?:-[0-9A-Za-z.-]+)?$`)

// DefaultTagPattern is the glob a tag ref must match to trigger a release.
const DefaultTagPattern = "v*"

// VersionFromRef derives a collection version from a git tag ref such as
// "refs/tags/v1.2.3". A bare tag name like "v1.2.3" is accepted too.
func VersionFromRef(ref string) (string, error) {
	tag := strings.TrimPrefix(ref, "refs/tags/")
	if tag == "" || strings.Contains(tag, "/") {
		return "", fmt.Errorf("ref '%s' is not a tag ref", ref)
	}

	version := strings.TrimPrefix(tag, "v")
	if !versionPattern.MatchString(version) {
		return "", fmt.Errorf("tag '%s' does not carry a valid version", tag)
	}
	return version, nil
}

// RefMatchesPattern reports whether the tag name of ref matches the given
// glob pattern. An empty pattern falls back to DefaultTagPattern.
func RefMatchesPattern(ref, pattern string) bool {
	if pattern == "" {
		pattern = DefaultTagPattern
	}
	tag := strings.TrimPrefix(ref, "refs/tags/")
	ok, err := path.Match(pattern, tag)
	return err == nil && ok
}
