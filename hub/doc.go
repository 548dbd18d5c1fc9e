// Package hub is a minimal client for the release hosting service. It covers
// the three calls the publish step needs: creating a release for a tag,
// looking an existing one up, and uploading the archive as a release asset.
package hub
