// Package release implements the collection release domain: the manifest and
// requirements formats, version derivation from tag refs, archive building,
// and the pipeline tasks that tie them together.
package release
