package colship

import (
	"fmt"

	"github.com/colship/colship/store"
)

// TaskDef is a serializable representation of a Task.
// It uses a registered ID to identify the task type and can hold
// arbitrary parameters for execution.
type TaskDef struct {
	// ID is the unique identifier of the task as registered in the task registry.
	ID string `json:"id"`
	// Name overrides the default name of the registered task, if provided.
	Name string `json:"name,omitempty"`
	// Params are arbitrary key-value pairs passed to the task via the store,
	// under PrefixParam keys.
	Params map[string]interface{} `json:"params,omitempty"`
}

// StepDef is a serializable representation of a Step.
type StepDef struct {
	// ID is the unique identifier for the step.
	ID string `json:"id"`
	// Name is a human-readable name for the step.
	Name string `json:"name,omitempty"`
	// Description provides details about the step's purpose.
	Description string `json:"description,omitempty"`
	// Tags for organization and filtering.
	Tags []string `json:"tags,omitempty"`
	// Tasks is an ordered list of task definitions for this step.
	Tasks []TaskDef `json:"tasks"`
}

// PipelineDef is a serializable representation of a Pipeline.
// This structure is passed to a worker process to define the work it needs
// to perform.
type PipelineDef struct {
	// ID is the unique identifier for the pipeline.
	ID string `json:"id"`
	// Name is a human-readable name for the pipeline.
	Name string `json:"name,omitempty"`
	// Description provides details about the pipeline's purpose.
	Description string `json:"description,omitempty"`
	// Tags for organization and filtering.
	Tags []string `json:"tags,omitempty"`
	// Steps contains all the pipeline's step definitions in execution order.
	Steps []StepDef `json:"steps"`
	// InitialStore contains key-value data that will be loaded into the
	// pipeline's store before execution begins. Values must be JSON-serializable.
	InitialStore map[string]interface{} `json:"initialStore,omitempty"`
}

// NewPipelineFromDef creates a new Pipeline instance from a PipelineDef.
// It uses the task registry to instantiate the correct task types.
func NewPipelineFromDef(def *PipelineDef) (*Pipeline, error) {
	p := NewPipelineWithTags(def.ID, def.Name, def.Description, def.Tags)

	if def.InitialStore != nil {
		for key, value := range def.InitialStore {
			if err := p.Store.Put(key, value); err != nil {
				return nil, fmt.Errorf("failed to seed store key '%s': %w", key, err)
			}
		}
	}

	for _, stepDef := range def.Steps {
		step := NewStepWithTags(stepDef.ID, stepDef.Name, stepDef.Description, stepDef.Tags)
		for _, taskDef := range stepDef.Tasks {
			task, err := NewTaskFromRegistry(taskDef.ID)
			if err != nil {
				return nil, err
			}

			// Tasks look their params up in the store during Execute;
			// keys are prefixed to avoid collisions.
			for pKey, pValue := range taskDef.Params {
				storeKey := fmt.Sprintf("%s%s:%s", PrefixParam, taskDef.ID, pKey)
				p.Store.Put(storeKey, pValue)
			}

			step.AddTask(task)
		}
		p.AddStep(step)
	}

	return p, nil
}

// TaskParam retrieves a task parameter seeded from a TaskDef, returning the
// fallback when the parameter is absent.
func TaskParam[T any](ctx *TaskContext, taskID, param string, fallback T) T {
	key := fmt.Sprintf("%s%s:%s", PrefixParam, taskID, param)
	value, err := store.Get[T](ctx.Store(), key)
	if err != nil {
		return fallback
	}
	return value
}
