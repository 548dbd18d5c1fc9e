package colship

import "fmt"

// TaskFactory is a function that creates a new instance of a Task.
// It's used by the registry to instantiate tasks from their IDs.
type TaskFactory func() Task

var (
	taskRegistry = make(map[string]TaskFactory)
)

// RegisterTask registers a task factory with a unique ID.
// This function should be called at application startup for all tasks
// that might be executed in a worker process.
// It will panic if a task with the same ID is already registered.
func RegisterTask(id string, factory TaskFactory) {
	if _, exists := taskRegistry[id]; exists {
		panic(fmt.Sprintf("task with id '%s' is already registered", id))
	}
	taskRegistry[id] = factory
}

// NewTaskFromRegistry creates a new Task instance from the registry using its ID.
// It returns an error if the task ID is not found.
func NewTaskFromRegistry(id string) (Task, error) {
	factory, ok := taskRegistry[id]
	if !ok {
		return nil, fmt.Errorf("task with id '%s' not found in registry", id)
	}
	return factory(), nil
}
