package colship

// Store key prefixes for organizing different entities in the store
const (
	// PrefixPipeline is used for pipeline metadata
	PrefixPipeline = "pipeline:"

	// PrefixStep is used for step metadata
	PrefixStep = "step:"

	// PrefixTask is used for task metadata
	PrefixTask = "task:"

	// PrefixParam is used for task parameters passed through definitions
	PrefixParam = "param:"

	// PrefixRelease is used for release artifacts produced during the run
	PrefixRelease = "release:"
)

// Common tags used across the pipeline system
const (
	// TagSystem identifies system-managed entities
	TagSystem = "system"

	// TagDynamic identifies dynamically generated components
	TagDynamic = "dynamic"

	// TagDisabled identifies disabled components
	TagDisabled = "disabled"
)

// Common property keys used in metadata
const (
	// PropCreatedBy tracks who/what created an entity
	PropCreatedBy = "createdBy"

	// PropOrder tracks execution order for components
	PropOrder = "order"

	// PropStatus tracks the current status
	PropStatus = "status"
)

// Status values for pipeline components
const (
	// StatusPending means not yet started
	StatusPending = "pending"

	// StatusRunning means currently in progress
	StatusRunning = "running"

	// StatusCompleted means successfully finished
	StatusCompleted = "completed"

	// StatusFailed means execution failed
	StatusFailed = "failed"

	// StatusSkipped means execution was skipped
	StatusSkipped = "skipped"
)

// Well-known store keys shared between the release tasks. The tasks
// communicate exclusively through the pipeline store so that any of them can
// run in a spawned worker process.
const (
	// KeyTagRef holds the raw tag ref that triggered the run.
	KeyTagRef = PrefixRelease + "ref"

	// KeyVersion holds the version derived from the tag ref.
	KeyVersion = PrefixRelease + "version"

	// KeyArchivePath holds the path of the built archive.
	KeyArchivePath = PrefixRelease + "archivePath"

	// KeyArchiveSHA256 holds the hex digest of the built archive.
	KeyArchiveSHA256 = PrefixRelease + "archiveSha256"

	// KeyReleaseID holds the hosting service's release identifier.
	KeyReleaseID = PrefixRelease + "releaseId"

	// KeyAssetName holds the uploaded asset name.
	KeyAssetName = PrefixRelease + "assetName"
)
