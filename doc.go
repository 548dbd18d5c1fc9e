// Package colship provides the release pipeline engine behind the colship
// command: tag-triggered build and publish runs for collection archives.
//
// A run is organized as a Pipeline of sequential Steps, each containing
// ordered Tasks. The Runner executes pipelines through a middleware chain and
// aborts on the first failing task, surfacing the failure as a non-zero run.
//
// Core components:
//   - Pipeline: the top-level container for one release process
//   - Step: a sequential phase within a pipeline (source check, version
//     derivation, dependency check, archive build, publish)
//   - Task: an individual unit of work
//   - Store: a type-safe key-value store shared across the run
//
// Pipelines can also be executed in a spawned worker process; the parent
// streams the serialized definition over the child's stdin and consumes log,
// store-sync and result messages from its stdout.
package colship
