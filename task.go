package colship

import (
	"context"

	"github.com/colship/colship/store"
)

// Task is a single unit of work within a step.
// Tasks are the building blocks of pipelines and represent individual pieces
// of the release process. Tasks can be organized using tags and can be
// dynamically enabled or disabled at runtime.
type Task interface {
	// Name returns the task's name
	Name() string

	// Description returns a human-readable description of the task
	Description() string

	// Tags returns the task's tags for organization and filtering
	Tags() []string

	// Execute performs the task's work.
	// The TaskContext provides access to the pipeline environment,
	// including the store for state management and the logger for output.
	Execute(ctx *TaskContext) error
}

// TaskRunnerFunc is the core function type for executing a task.
type TaskRunnerFunc func(ctx *TaskContext, task Task, index int, isLast bool) error

// TaskMiddleware represents a function that wraps task execution.
// It allows performing operations before and after a task executes,
// with information about the task's position in the execution sequence.
type TaskMiddleware func(next TaskRunnerFunc) TaskRunnerFunc

// BaseTask provides a common implementation of the Task metadata methods.
// Concrete tasks embed it and implement Execute.
type BaseTask struct {
	name        string
	description string
	tags        []string
}

// NewBaseTask creates a BaseTask with the given name and description.
func NewBaseTask(name, description string) BaseTask {
	return BaseTask{name: name, description: description, tags: []string{}}
}

// NewBaseTaskWithTags creates a BaseTask with the given name, description and tags.
func NewBaseTaskWithTags(name, description string, tags []string) BaseTask {
	return BaseTask{name: name, description: description, tags: tags}
}

// Name returns the task's name
func (t *BaseTask) Name() string { return t.name }

// Description returns the task's description
func (t *BaseTask) Description() string { return t.description }

// Tags returns the task's tags
func (t *BaseTask) Tags() []string { return t.tags }

// AddTag adds a tag to the task if it doesn't already exist.
func (t *BaseTask) AddTag(tag string) {
	for _, existing := range t.tags {
		if existing == tag {
			return
		}
	}
	t.tags = append(t.tags, tag)
}

// funcTask wraps a plain function as a Task.
type funcTask struct {
	BaseTask
	fn func(ctx *TaskContext) error
}

// NewFuncTask creates a Task from a function. It is mostly useful in tests
// and for small glue tasks that don't warrant a dedicated type.
func NewFuncTask(name, description string, fn func(ctx *TaskContext) error) Task {
	return &funcTask{BaseTask: NewBaseTask(name, description), fn: fn}
}

func (t *funcTask) Execute(ctx *TaskContext) error { return t.fn(ctx) }

// TaskContext provides the execution environment for a task.
// It gives access to the enclosing pipeline and step, the shared store,
// the logger, and the hooks for dynamic pipeline modification.
type TaskContext struct {
	// GoContext is the context.Context for the run; tasks performing
	// blocking work must honor its cancellation.
	GoContext context.Context

	// Pipeline is the pipeline being executed
	Pipeline *Pipeline

	// Step is the step currently executing
	Step *Step

	// Task is the task currently executing
	Task Task

	// Logger for task output
	Logger Logger

	dynamicTasks  []Task
	dynamicSteps  []*Step
	disabledTasks map[string]bool
	disabledSteps map[string]bool
}

// Store returns the pipeline's shared key-value store.
func (c *TaskContext) Store() *store.KVStore {
	return c.Pipeline.Store
}

// AddDynamicTask schedules a task for insertion immediately after the
// currently executing task within the same step.
func (c *TaskContext) AddDynamicTask(task Task) {
	c.dynamicTasks = append(c.dynamicTasks, task)
}

// AddDynamicStep schedules a step for insertion after the current step
// completes.
func (c *TaskContext) AddDynamicStep(step *Step) {
	c.dynamicSteps = append(c.dynamicSteps, step)
}

// DisableTask prevents a task in the current step from executing.
func (c *TaskContext) DisableTask(name string) {
	c.disabledTasks[name] = true
}

// EnableTask re-enables a previously disabled task.
func (c *TaskContext) EnableTask(name string) {
	delete(c.disabledTasks, name)
}

// DisableStep prevents a later step from executing.
func (c *TaskContext) DisableStep(stepID string) {
	c.disabledSteps[stepID] = true
}

// IsTaskDisabled reports whether the named task is disabled.
func (c *TaskContext) IsTaskDisabled(name string) bool {
	return c.disabledTasks[name]
}
