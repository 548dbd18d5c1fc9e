package colship

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/colship/colship/store"
)

// TestLogger is a simple logger implementation for testing
type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Debug(format string, args ...interface{}) {
	l.t.Logf("[DEBUG] "+format, args...)
}

func (l *TestLogger) Info(format string, args ...interface{}) {
	l.t.Logf("[INFO] "+format, args...)
}

func (l *TestLogger) Warn(format string, args ...interface{}) {
	l.t.Logf("[WARN] "+format, args...)
}

func (l *TestLogger) Error(format string, args ...interface{}) {
	l.t.Logf("[ERROR] "+format, args...)
}

func TestPipelineExecution(t *testing.T) {
	pipeline := NewPipeline("test-pipeline", "Test Pipeline", "A test pipeline")

	err := pipeline.Store.Put("pipeline-key", "pipeline-value")
	assert.NoError(t, err)

	step := NewStep("test-step", "Test Step", "A test step")
	err = step.SetInitialData("step-key", "step-value")
	assert.NoError(t, err)

	task := NewFuncTask("test-task", "Test Task", func(ctx *TaskContext) error {
		val, err := store.Get[string](ctx.Store(), "pipeline-key")
		if err != nil {
			return fmt.Errorf("pipeline key not found: %w", err)
		}
		if val != "pipeline-value" {
			return fmt.Errorf("unexpected pipeline key value: %s", val)
		}

		// The step's initial data must be merged into the pipeline store.
		val, err = store.Get[string](ctx.Store(), "step-key")
		if err != nil {
			return fmt.Errorf("step key not found: %w", err)
		}
		if val != "step-value" {
			return fmt.Errorf("unexpected step key value: %s", val)
		}

		return ctx.Store().Put("task-key", "task-value")
	})

	step.AddTask(task)
	pipeline.AddStep(step)

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger))
	err = runner.Execute(context.Background(), pipeline, logger)
	assert.NoError(t, err)

	val, err := store.Get[string](pipeline.Store, "task-key")
	assert.NoError(t, err)
	assert.Equal(t, "task-value", val)
}

func TestPipelineAbortsOnFailure(t *testing.T) {
	pipeline := NewPipeline("failing-pipeline", "Failing Pipeline", "Aborts on the first error")

	executed := []string{}

	first := NewStep("first", "First", "")
	first.AddTask(NewFuncTask("ok-task", "", func(ctx *TaskContext) error {
		executed = append(executed, "ok-task")
		return nil
	}))
	first.AddTask(NewFuncTask("failing-task", "", func(ctx *TaskContext) error {
		executed = append(executed, "failing-task")
		return fmt.Errorf("intentional task failure")
	}))

	second := NewStep("second", "Second", "")
	second.AddTask(NewFuncTask("never-task", "", func(ctx *TaskContext) error {
		executed = append(executed, "never-task")
		return nil
	}))

	pipeline.AddStep(first)
	pipeline.AddStep(second)

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger))
	err := runner.Execute(context.Background(), pipeline, logger)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failing-task")
	assert.Equal(t, []string{"ok-task", "failing-task"}, executed)
}

func TestDynamicTasks(t *testing.T) {
	pipeline := NewPipeline("dynamic-pipeline", "Dynamic Pipeline", "A pipeline with dynamic tasks")
	step := NewStep("dynamic-step", "Dynamic Step", "A step with dynamic tasks")

	counter := 0
	generator := NewFuncTask("generator", "Generates more tasks", func(ctx *TaskContext) error {
		ctx.AddDynamicTask(NewFuncTask("dynamic-1", "Generated Task 1", func(innerCtx *TaskContext) error {
			counter++
			return nil
		}))
		ctx.AddDynamicTask(NewFuncTask("dynamic-2", "Generated Task 2", func(innerCtx *TaskContext) error {
			counter++
			return nil
		}))
		return nil
	})

	step.AddTask(generator)
	pipeline.AddStep(step)

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger))
	err := runner.Execute(context.Background(), pipeline, logger)
	assert.NoError(t, err)

	assert.Equal(t, 2, counter)
}

func TestDynamicSteps(t *testing.T) {
	pipeline := NewPipeline("dynamic-steps", "Dynamic Steps", "A pipeline with dynamic steps")
	initial := NewStep("initial-step", "Initial Step", "Generates another step")

	stepCounter := 0
	generator := NewFuncTask("step-generator", "Generates a new step", func(ctx *TaskContext) error {
		generated := NewStep("generated-step", "Generated Step", "Dynamically generated step")
		generated.AddTask(NewFuncTask("generated-task", "Generated Task", func(innerCtx *TaskContext) error {
			stepCounter++
			return nil
		}))
		ctx.AddDynamicStep(generated)
		return nil
	})

	initial.AddTask(generator)
	pipeline.AddStep(initial)

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger))
	err := runner.Execute(context.Background(), pipeline, logger)
	assert.NoError(t, err)

	assert.Equal(t, 1, stepCounter)
	assert.Len(t, pipeline.Steps, 2)
}

func TestDisabledTask(t *testing.T) {
	pipeline := NewPipeline("disable-task", "Disable Task", "Disables a later task")
	step := NewStep("step", "Step", "")

	executed := false
	step.AddTask(NewFuncTask("disabler", "Disables the next task", func(ctx *TaskContext) error {
		ctx.DisableTask("victim")
		return nil
	}))
	step.AddTask(NewFuncTask("victim", "Should not run", func(ctx *TaskContext) error {
		executed = true
		return nil
	}))

	pipeline.AddStep(step)

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger))
	err := runner.Execute(context.Background(), pipeline, logger)
	assert.NoError(t, err)
	assert.False(t, executed, "disabled task must not execute")
}

func TestDisabledStep(t *testing.T) {
	pipeline := NewPipeline("disable-step", "Disable Step", "Disables a later step")

	first := NewStep("first", "First", "")
	first.AddTask(NewFuncTask("disabler", "Disables the second step", func(ctx *TaskContext) error {
		ctx.DisableStep("second")
		return nil
	}))

	executed := false
	second := NewStep("second", "Second", "")
	second.AddTask(NewFuncTask("victim", "Should not run", func(ctx *TaskContext) error {
		executed = true
		return nil
	}))

	pipeline.AddStep(first)
	pipeline.AddStep(second)

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger))
	err := runner.Execute(context.Background(), pipeline, logger)
	assert.NoError(t, err)
	assert.False(t, executed, "disabled step must not execute")

	// The skipped step's status is recorded in the store.
	status, err := pipeline.Store.GetProperty(PrefixStep+"second", PropStatus)
	assert.NoError(t, err)
	assert.Equal(t, StatusSkipped, status)
}

func TestPipelineWithNoSteps(t *testing.T) {
	pipeline := NewPipeline("empty", "Empty", "No steps at all")

	logger := &TestLogger{t: t}
	runner := NewRunner(WithLogger(logger))
	err := runner.Execute(context.Background(), pipeline, logger)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no steps")
}

func TestListStepsByTag(t *testing.T) {
	pipeline := NewPipeline("tagged", "Tagged", "")
	pipeline.AddStep(NewStepWithTags("a", "A", "", []string{"build"}))
	pipeline.AddStep(NewStepWithTags("b", "B", "", []string{"publish"}))
	pipeline.AddStep(NewStepWithTags("c", "C", "", []string{"build", "publish"}))

	build := pipeline.ListStepsByTag("build")
	assert.Len(t, build, 2)

	publish := pipeline.ListStepsByTag("publish")
	assert.Len(t, publish, 2)

	none := pipeline.ListStepsByTag("missing")
	assert.Empty(t, none)
}
