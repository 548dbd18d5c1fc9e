// Package store provides a threadsafe, type-aware key-value store used as the
// shared state of a pipeline run.
//
// Values are stored without serialization together with their concrete type,
// and retrieved with compile-time type safety through the generic Get
// function. Entries can carry metadata (tags, properties, timestamps) and an
// optional time-to-live.
//
// The store also exposes a JSON Schema describing any stored value's type,
// which the engine uses when exporting run state for a worker process or for
// inspection.
package store
