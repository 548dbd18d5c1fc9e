package release

import (
	"github.com/colship/colship"
)

// PipelineOptions configures a release pipeline assembly.
type PipelineOptions struct {
	// Ref is the tag ref that triggered the run, e.g. "refs/tags/v1.2.3".
	Ref string
	// SourceDir is the collection root. Defaults to ".".
	SourceDir string
	// OutputDir receives the archive. Defaults to "<SourceDir>/dist".
	OutputDir string
	// RequirementsPath locates the requirements file. Defaults to
	// "<SourceDir>/requirements.yml".
	RequirementsPath string
	// HubURL is the release host API root. Required unless DryRun is set.
	HubURL string
	// Token is the bearer token for the release host. Used by NewPipeline,
	// which runs in-process.
	Token string
	// TokenEnv names the environment variable holding the bearer token.
	// Used by NewPipelineDef: the secret itself never enters the
	// serialized definition, the worker resolves it from its own
	// environment.
	TokenEnv string
	// DryRun stops the publish step short of any network call.
	DryRun bool
	// SkipPublish leaves the publish step out entirely, for local builds.
	SkipPublish bool
}

// NewPipeline assembles the release pipeline: check out the source, derive
// the version, resolve requirements, build the archive and publish it.
func NewPipeline(opts PipelineOptions) *colship.Pipeline {
	sourceDir := opts.SourceDir
	if sourceDir == "" {
		sourceDir = "."
	}
	reqPath := opts.RequirementsPath
	if reqPath == "" {
		reqPath = sourceDir + "/requirements.yml"
	}

	p := colship.NewPipeline("release", "Collection Release", "Package and publish the collection for a tagged version")

	checkout := colship.NewStep("checkout", "Checkout", "Validate the collection source tree")
	checkout.AddTask(NewSourceCheckTask(sourceDir))
	p.AddStep(checkout)

	version := colship.NewStep("version", "Version", "Derive the release version from the tag ref")
	version.AddTask(NewVersionTask(opts.Ref))
	p.AddStep(version)

	deps := colship.NewStep("requirements", "Requirements", "Validate collection requirements")
	deps.AddTask(NewRequirementsTask(reqPath))
	p.AddStep(deps)

	build := colship.NewStep("build", "Build", "Package the collection archive")
	build.AddTask(NewBuildTask(sourceDir, opts.OutputDir))
	p.AddStep(build)

	if !opts.SkipPublish {
		publish := colship.NewStep("publish", "Publish", "Upload the archive to the release host")
		task := NewPublishTask(opts.HubURL, opts.Token)
		task.DryRun = opts.DryRun
		publish.AddTask(task)
		p.AddStep(publish)
	}

	return p
}

// NewPipelineDef assembles the same pipeline as NewPipeline, but as a
// serializable definition suitable for handing to a spawned worker process.
// Task configuration travels as definition params so the worker can rebuild
// each task from the registry.
func NewPipelineDef(opts PipelineOptions) *colship.PipelineDef {
	sourceDir := opts.SourceDir
	if sourceDir == "" {
		sourceDir = "."
	}
	reqPath := opts.RequirementsPath
	if reqPath == "" {
		reqPath = sourceDir + "/requirements.yml"
	}

	def := &colship.PipelineDef{
		ID:          "release",
		Name:        "Collection Release",
		Description: "Package and publish the collection for a tagged version",
		Steps: []colship.StepDef{
			{ID: "checkout", Name: "Checkout", Tasks: []colship.TaskDef{
				{ID: TaskIDSourceCheck, Params: map[string]interface{}{"sourceDir": sourceDir}},
			}},
			{ID: "version", Name: "Version", Tasks: []colship.TaskDef{
				{ID: TaskIDVersion, Params: map[string]interface{}{"ref": opts.Ref}},
			}},
			{ID: "requirements", Name: "Requirements", Tasks: []colship.TaskDef{
				{ID: TaskIDRequirements, Params: map[string]interface{}{"path": reqPath}},
			}},
			{ID: "build", Name: "Build", Tasks: []colship.TaskDef{
				{ID: TaskIDBuild, Params: map[string]interface{}{
					"sourceDir": sourceDir,
					"outputDir": opts.OutputDir,
				}},
			}},
		},
	}

	if !opts.SkipPublish {
		def.Steps = append(def.Steps, colship.StepDef{
			ID: "publish", Name: "Publish", Tasks: []colship.TaskDef{
				{ID: TaskIDPublish, Params: map[string]interface{}{
					"hubUrl":   opts.HubURL,
					"tokenEnv": opts.TokenEnv,
					"dryRun":   opts.DryRun,
				}},
			},
		})
	}

	return def
}
