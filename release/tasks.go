package release

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/colship/colship"
	"github.com/colship/colship/hub"
	"github.com/colship/colship/store"
)

// Registered task IDs. Worker processes instantiate tasks through these.
const (
	TaskIDSourceCheck  = "release:source-check"
	TaskIDVersion      = "release:version"
	TaskIDRequirements = "release:requirements"
	TaskIDBuild        = "release:build"
	TaskIDPublish      = "release:publish"
)

// RegisterTasks registers the release tasks in the task registry so pipeline
// definitions can reference them by ID. Call it once at process start.
func RegisterTasks() {
	colship.RegisterTask(TaskIDSourceCheck, func() colship.Task { return NewSourceCheckTask("") })
	colship.RegisterTask(TaskIDVersion, func() colship.Task { return NewVersionTask("") })
	colship.RegisterTask(TaskIDRequirements, func() colship.Task { return NewRequirementsTask("") })
	colship.RegisterTask(TaskIDBuild, func() colship.Task { return NewBuildTask("", "") })
	colship.RegisterTask(TaskIDPublish, func() colship.Task { return NewPublishTask("", "") })
}

// SourceCheckTask verifies the collection source directory: the manifest must
// exist and carry a valid identity. It stores nothing; it only gates the run.
type SourceCheckTask struct {
	colship.BaseTask
	SourceDir string
}

// NewSourceCheckTask creates a SourceCheckTask for the given directory.
func NewSourceCheckTask(sourceDir string) *SourceCheckTask {
	return &SourceCheckTask{
		BaseTask:  colship.NewBaseTask("source-check", "Validate the collection source tree"),
		SourceDir: sourceDir,
	}
}

func (t *SourceCheckTask) Execute(ctx *colship.TaskContext) error {
	dir := colship.TaskParam(ctx, TaskIDSourceCheck, "sourceDir", t.SourceDir)
	if dir == "" {
		dir = "."
	}

	m, err := LoadManifestFromDir(dir)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	ctx.Logger.Info("collection %s checked out at %s", m.FQN(), dir)
	return nil
}

// VersionTask derives the release version from the tag ref that triggered the
// run and stores it for the later steps.
type VersionTask struct {
	colship.BaseTask
	Ref string
}

// NewVersionTask creates a VersionTask for the given tag ref.
func NewVersionTask(ref string) *VersionTask {
	return &VersionTask{
		BaseTask: colship.NewBaseTask("version", "Derive the release version from the tag ref"),
		Ref:      ref,
	}
}

func (t *VersionTask) Execute(ctx *colship.TaskContext) error {
	ref := colship.TaskParam(ctx, TaskIDVersion, "ref", t.Ref)
	if ref == "" {
		return fmt.Errorf("no tag ref provided")
	}

	version, err := VersionFromRef(ref)
	if err != nil {
		return err
	}

	if err := ctx.Store().Put(colship.KeyTagRef, ref); err != nil {
		return err
	}
	if err := ctx.Store().Put(colship.KeyVersion, version); err != nil {
		return err
	}

	ctx.Logger.Info("releasing version %s from %s", version, ref)
	return nil
}

// RequirementsTask loads and validates the collection's requirements file.
type RequirementsTask struct {
	colship.BaseTask
	Path string
}

// NewRequirementsTask creates a RequirementsTask for the given requirements
// file. An empty path means <sourceDir>/requirements.yml is not consulted and
// "requirements.yml" in the working directory is used instead.
func NewRequirementsTask(path string) *RequirementsTask {
	return &RequirementsTask{
		BaseTask: colship.NewBaseTask("requirements", "Validate the collection requirements"),
		Path:     path,
	}
}

func (t *RequirementsTask) Execute(ctx *colship.TaskContext) error {
	path := colship.TaskParam(ctx, TaskIDRequirements, "path", t.Path)
	if path == "" {
		path = "requirements.yml"
	}

	reqs, err := LoadRequirements(path)
	if err != nil {
		return err
	}
	if err := reqs.Validate(); err != nil {
		return err
	}

	ctx.Logger.Info("requirements checked: %d entries", reqs.Count())
	return nil
}

// BuildTask packages the collection into a versioned tar.gz archive and
// records its path and digest in the store.
type BuildTask struct {
	colship.BaseTask
	SourceDir string
	OutputDir string
}

// NewBuildTask creates a BuildTask packaging sourceDir into outputDir.
func NewBuildTask(sourceDir, outputDir string) *BuildTask {
	return &BuildTask{
		BaseTask:  colship.NewBaseTask("build", "Package the collection archive"),
		SourceDir: sourceDir,
		OutputDir: outputDir,
	}
}

func (t *BuildTask) Execute(ctx *colship.TaskContext) error {
	sourceDir := colship.TaskParam(ctx, TaskIDBuild, "sourceDir", t.SourceDir)
	if sourceDir == "" {
		sourceDir = "."
	}
	outputDir := colship.TaskParam(ctx, TaskIDBuild, "outputDir", t.OutputDir)
	if outputDir == "" {
		outputDir = filepath.Join(sourceDir, "dist")
	}

	version, err := store.Get[string](ctx.Store(), colship.KeyVersion)
	if err != nil {
		return fmt.Errorf("no version available, did the version step run: %w", err)
	}

	m, err := LoadManifestFromDir(sourceDir)
	if err != nil {
		return err
	}

	builder := &Builder{SourceDir: sourceDir, OutputDir: outputDir}
	archive, err := builder.Build(m, version)
	if err != nil {
		return err
	}

	if err := ctx.Store().Put(colship.KeyArchivePath, archive.Path); err != nil {
		return err
	}
	if err := ctx.Store().Put(colship.KeyArchiveSHA256, archive.SHA256); err != nil {
		return err
	}

	ctx.Logger.Info("built %s (%d bytes, sha256 %s)", archive.Path, archive.Size, archive.SHA256)
	return nil
}

// PublishTask creates a release on the hosting service for the triggering tag
// and uploads the built archive as its asset. When DryRun is set it logs what
// it would do and stops short of any network call.
type PublishTask struct {
	colship.BaseTask
	HubURL string
	Token  string
	DryRun bool

	// client overrides the hub client, for tests.
	client *hub.Client
}

// NewPublishTask creates a PublishTask targeting the given hub.
func NewPublishTask(hubURL, token string) *PublishTask {
	return &PublishTask{
		BaseTask: colship.NewBaseTask("publish", "Upload the archive to the release host"),
		HubURL:   hubURL,
		Token:    token,
	}
}

func (t *PublishTask) Execute(ctx *colship.TaskContext) error {
	tagRef, err := store.Get[string](ctx.Store(), colship.KeyTagRef)
	if err != nil {
		return fmt.Errorf("no tag ref available, did the version step run: %w", err)
	}
	version, err := store.Get[string](ctx.Store(), colship.KeyVersion)
	if err != nil {
		return fmt.Errorf("no version available, did the version step run: %w", err)
	}
	archivePath, err := store.Get[string](ctx.Store(), colship.KeyArchivePath)
	if err != nil {
		return fmt.Errorf("no archive available, did the build step run: %w", err)
	}

	tag := tagRefName(tagRef)
	assetName := filepath.Base(archivePath)

	dryRun := colship.TaskParam(ctx, TaskIDPublish, "dryRun", t.DryRun)
	if dryRun {
		ctx.Logger.Info("dry run: would publish %s to release %s", assetName, tag)
		return ctx.Store().Put(colship.KeyAssetName, assetName)
	}

	client := t.client
	if client == nil {
		hubURL := colship.TaskParam(ctx, TaskIDPublish, "hubUrl", t.HubURL)
		if hubURL == "" {
			return fmt.Errorf("no hub URL configured")
		}
		token := colship.TaskParam(ctx, TaskIDPublish, "tokenEnv", "")
		if token != "" {
			token = os.Getenv(token)
		} else {
			token = t.Token
		}
		client = hub.NewClient(hubURL, token)
	}

	rel, err := client.GetReleaseByTag(ctx.GoContext, tag)
	if hub.IsNotFound(err) {
		rel, err = client.CreateRelease(ctx.GoContext, tag, "Release "+version, "")
	}
	if err != nil {
		return fmt.Errorf("failed to prepare release for %s: %w", tag, err)
	}

	asset, err := client.UploadAsset(ctx.GoContext, rel.ID, archivePath)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", assetName, err)
	}

	if err := ctx.Store().Put(colship.KeyReleaseID, rel.ID); err != nil {
		return err
	}
	if err := ctx.Store().Put(colship.KeyAssetName, asset.Name); err != nil {
		return err
	}

	ctx.Logger.Info("published %s to release %s", asset.Name, tag)
	return nil
}

// tagRefName strips the refs/tags/ prefix if present.
func tagRefName(ref string) string {
	return strings.TrimPrefix(ref, "refs/tags/")
}
