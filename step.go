package colship

import (
	"context"

	"github.com/colship/colship/store"
)

// StepRunnerFunc is the core function type for executing a step.
// It follows the same pattern as RunnerFunc for pipeline execution.
type StepRunnerFunc func(ctx context.Context, step *Step, pipeline *Pipeline, logger Logger) error

// StepMiddleware represents a function that wraps step execution.
// It allows performing operations before and after a step executes.
type StepMiddleware func(next StepRunnerFunc) StepRunnerFunc

// Step is a logical phase within a pipeline that contains a sequence of tasks.
// Steps provide organization and grouping of related tasks and can be
// dynamically enabled, disabled, or generated during pipeline execution.
type Step struct {
	// ID is the unique identifier for the step
	ID string
	// Name is a human-readable name for the step
	Name string
	// Description provides details about the step's purpose
	Description string
	// Tasks is an ordered list of tasks to execute
	Tasks []Task
	// Tags for organization and filtering
	Tags []string

	// initialStore contains key-value data available at the start of step execution
	initialStore *store.KVStore

	// middleware contains the middleware functions to apply during step execution
	middleware []StepMiddleware

	// taskMiddleware wraps the execution of each task in the step
	taskMiddleware []TaskMiddleware
}

// StepInfo holds serializable step information for persistence and transmission.
// This is used when storing step data in the pipeline's key-value store.
type StepInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	TaskIDs     []string `json:"taskIds"`
}

// NewStep creates a new step with the given properties.
// The step will have empty task and tag collections and a new key-value store.
func NewStep(id, name, description string) *Step {
	return &Step{
		ID:           id,
		Name:         name,
		Description:  description,
		Tasks:        []Task{},
		Tags:         []string{},
		initialStore: store.NewKVStore(),
		middleware:   []StepMiddleware{},
	}
}

// NewStepWithTags creates a new step with the given properties and tags.
func NewStepWithTags(id, name, description string, tags []string) *Step {
	s := NewStep(id, name, description)
	s.Tags = tags
	return s
}

// Use adds middleware to the step's middleware chain.
// Middleware is executed in the order it is added.
func (s *Step) Use(middleware ...StepMiddleware) {
	s.middleware = append(s.middleware, middleware...)
}

// GetMiddleware returns the step's middleware chain
func (s *Step) GetMiddleware() []StepMiddleware {
	return s.middleware
}

// UseTask adds task middleware to the step. It wraps every task the step
// executes, including tasks inserted dynamically.
func (s *Step) UseTask(middleware ...TaskMiddleware) {
	s.taskMiddleware = append(s.taskMiddleware, middleware...)
}

// toStepInfo converts a Step to a serializable StepInfo.
func (s *Step) toStepInfo() StepInfo {
	taskIDs := make([]string, len(s.Tasks))
	for i, task := range s.Tasks {
		taskIDs[i] = task.Name()
	}

	return StepInfo{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Tags:        s.Tags,
		TaskIDs:     taskIDs,
	}
}

// AddTag adds a tag to the step if it doesn't already exist.
func (s *Step) AddTag(tag string) {
	for _, t := range s.Tags {
		if t == tag {
			return
		}
	}
	s.Tags = append(s.Tags, tag)
}

// HasTag checks if the step has a specific tag.
func (s *Step) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTask adds a new task to the step.
// Tasks are executed in the order they are added to the step.
func (s *Step) AddTask(task Task) {
	s.Tasks = append(s.Tasks, task)
}

// SetInitialData adds or updates a key-value pair in the step's initial store.
// The data is merged into the pipeline store when the step starts.
func (s *Step) SetInitialData(key string, value any) error {
	return s.initialStore.Put(key, value)
}

// getInitialStore returns the step's initial store.
// This is used internally by the pipeline runner.
func (s *Step) getInitialStore() *store.KVStore {
	return s.initialStore
}
