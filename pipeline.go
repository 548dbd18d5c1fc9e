package colship

import (
	"context"
	"fmt"
	"time"

	"github.com/colship/colship/store"
)

// PipelineStepRunnerFunc is the core function type for executing a step within a pipeline.
type PipelineStepRunnerFunc func(ctx context.Context, step *Step, pipeline *Pipeline, logger Logger) error

// PipelineMiddleware represents a function that wraps step execution within a pipeline.
// This allows for pipeline-level operations that apply to all steps.
type PipelineMiddleware func(next PipelineStepRunnerFunc) PipelineStepRunnerFunc

// Pipeline is a sequence of steps forming one complete release process.
// It provides the top-level coordination for executing a series of steps
// and maintaining their shared state. Pipelines can be dynamically modified
// during execution.
type Pipeline struct {
	// ID is the unique identifier for the pipeline
	ID string
	// Name is a human-readable name for the pipeline
	Name string
	// Description provides details about the pipeline's purpose
	Description string
	// Tags for organization and filtering
	Tags []string

	// Store is the central key-value store for pipeline data.
	// It holds pipeline metadata, step information, and the release
	// state the tasks communicate through.
	Store *store.KVStore

	// Steps contains all the pipeline's steps in execution order
	Steps []*Step

	// Context stores arbitrary data for use during pipeline execution
	Context map[string]interface{}

	// middleware contains pipeline-level middleware that wraps step execution
	middleware []PipelineMiddleware
}

// PipelineInfo holds serializable pipeline information for persistence and transmission.
type PipelineInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	StepIDs     []string `json:"stepIds"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

// NewPipeline creates a new pipeline with the given properties.
// It initializes empty collections for steps, tags, and context,
// and creates a new key-value store.
func NewPipeline(id, name, description string) *Pipeline {
	p := &Pipeline{
		ID:          id,
		Name:        name,
		Description: description,
		Tags:        []string{},
		Store:       store.NewKVStore(),
		Steps:       []*Step{},
		Context:     make(map[string]interface{}),
		middleware:  []PipelineMiddleware{},
	}

	p.saveToStore()

	return p
}

// NewPipelineWithTags creates a new pipeline with the given properties and tags.
func NewPipelineWithTags(id, name, description string, tags []string) *Pipeline {
	p := NewPipeline(id, name, description)
	p.Tags = tags
	p.saveToStore()
	return p
}

// Use adds middleware to the pipeline's middleware chain.
// This middleware will be applied to each step execution.
func (p *Pipeline) Use(middleware ...PipelineMiddleware) {
	p.middleware = append(p.middleware, middleware...)
}

// GetMiddleware returns the pipeline's middleware chain
func (p *Pipeline) GetMiddleware() []PipelineMiddleware {
	return p.middleware
}

// saveToStore saves or updates the pipeline metadata in the store.
func (p *Pipeline) saveToStore() {
	info := PipelineInfo{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.Tags,
		StepIDs:     p.getStepIDs(),
		CreatedAt:   time.Now().Format(time.RFC3339),
		UpdatedAt:   time.Now().Format(time.RFC3339),
	}

	meta := store.NewMetadata()
	meta.Tags = append(meta.Tags, p.Tags...)
	meta.Tags = append(meta.Tags, TagSystem)
	meta.Description = p.Description

	key := PrefixPipeline + p.ID
	p.Store.PutWithMetadata(key, info, meta)
}

// getStepIDs returns the IDs of all steps in the pipeline.
func (p *Pipeline) getStepIDs() []string {
	ids := make([]string, len(p.Steps))
	for i, step := range p.Steps {
		ids[i] = step.ID
	}
	return ids
}

// AddTag adds a tag to the pipeline if it doesn't already exist.
func (p *Pipeline) AddTag(tag string) {
	for _, t := range p.Tags {
		if t == tag {
			return
		}
	}
	p.Tags = append(p.Tags, tag)
	p.saveToStore()
}

// HasTag checks if the pipeline has a specific tag.
func (p *Pipeline) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddStep adds a new step to the pipeline and stores it in the KV store.
// Steps are executed in the order they are added to the pipeline.
func (p *Pipeline) AddStep(step *Step) {
	p.Steps = append(p.Steps, step)

	stepKey := PrefixStep + step.ID
	stepInfo := step.toStepInfo()

	meta := store.NewMetadata()
	meta.Tags = append(meta.Tags, step.Tags...)
	meta.Description = step.Description
	meta.SetProperty(PropOrder, len(p.Steps)-1)
	meta.SetProperty(PropStatus, StatusPending)
	meta.SetProperty(PropCreatedBy, "pipeline:"+p.ID)

	p.Store.PutWithMetadata(stepKey, stepInfo, meta)

	p.saveToStore()
}

// GetStep retrieves a step by ID.
func (p *Pipeline) GetStep(stepID string) (*Step, error) {
	for _, step := range p.Steps {
		if step.ID == stepID {
			return step, nil
		}
	}
	return nil, fmt.Errorf("step '%s' not found in pipeline '%s'", stepID, p.ID)
}

// GetContext returns a value from the pipeline context
func (p *Pipeline) GetContext(key string) (interface{}, bool) {
	val, exists := p.Context[key]
	return val, exists
}

// SetContext stores a value in the pipeline context
func (p *Pipeline) SetContext(key string, value interface{}) {
	p.Context[key] = value
}

// DisableStep disables a step by ID. Disabled steps are skipped by the runner.
func (p *Pipeline) DisableStep(stepID string) {
	disabledSteps, ok := p.Context["disabledSteps"].(map[string]bool)
	if !ok {
		disabledSteps = make(map[string]bool)
		p.Context["disabledSteps"] = disabledSteps
	}
	disabledSteps[stepID] = true

	stepKey := PrefixStep + stepID
	p.Store.AddTag(stepKey, TagDisabled)
}

// EnableStep enables a step by ID
func (p *Pipeline) EnableStep(stepID string) {
	disabledSteps, ok := p.Context["disabledSteps"].(map[string]bool)
	if !ok {
		return
	}
	delete(disabledSteps, stepID)

	stepKey := PrefixStep + stepID
	p.Store.RemoveTag(stepKey, TagDisabled)
}

// IsStepEnabled checks if a step is enabled
func (p *Pipeline) IsStepEnabled(stepID string) bool {
	disabledSteps, ok := p.Context["disabledSteps"].(map[string]bool)
	if !ok {
		return true
	}
	return !disabledSteps[stepID]
}

// ListStepsByTag returns all steps with a specific tag
func (p *Pipeline) ListStepsByTag(tag string) []*Step {
	var result []*Step
	for _, step := range p.Steps {
		if step.HasTag(tag) {
			result = append(result, step)
		}
	}
	return result
}
