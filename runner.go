package colship

import (
	"context"
	"fmt"
	"time"

	"github.com/colship/colship/store"
	"github.com/google/uuid"
)

// RunnerFunc is the core function type for executing a pipeline.
type RunnerFunc func(ctx context.Context, pipeline *Pipeline, logger Logger) error

// Middleware represents a function that wraps pipeline execution.
// Middleware can perform actions before and after pipeline execution,
// inject data into the pipeline store, modify the context, or even
// skip execution entirely.
type Middleware func(next RunnerFunc) RunnerFunc

// Runner executes pipelines and manages the execution chain.
// It can be composed into other structures and supports middleware
// for adding cross-cutting concerns to pipeline execution.
type Runner struct {
	// Broker handles messages from spawned worker processes
	Broker *RunnerBroker

	// middleware chain to apply during pipeline execution
	middleware []Middleware
	// defaultLogger used when no logger is provided
	defaultLogger Logger
	// options for pipeline execution
	options RunOptions
	// spawnArgs are the arguments passed to the worker executable
	spawnArgs []string
	// spawnMiddleware hooks into worker process spawning
	spawnMiddleware []SpawnMiddleware
}

// RunnerOption is a function that configures a Runner
type RunnerOption func(*Runner)

// WithMiddleware adds middleware to the runner
func WithMiddleware(middleware ...Middleware) RunnerOption {
	return func(r *Runner) {
		r.middleware = append(r.middleware, middleware...)
	}
}

// WithLogger sets the default logger for the runner
func WithLogger(logger Logger) RunnerOption {
	return func(r *Runner) {
		r.defaultLogger = logger
	}
}

// WithOptions sets the default run options for the runner
func WithOptions(options RunOptions) RunnerOption {
	return func(r *Runner) {
		r.options = options
	}
}

// WithSpawnArgs sets the arguments passed to the worker executable when
// spawning a pipeline into a child process.
func WithSpawnArgs(args ...string) RunnerOption {
	return func(r *Runner) {
		r.spawnArgs = args
	}
}

// WithSpawnMiddleware adds spawn middleware to the runner.
func WithSpawnMiddleware(middleware ...SpawnMiddleware) RunnerOption {
	return func(r *Runner) {
		r.UseSpawnMiddleware(middleware...)
	}
}

// NewRunner creates a new pipeline runner with the given options
func NewRunner(opts ...RunnerOption) *Runner {
	runner := &Runner{
		Broker:        NewRunnerBroker(nil),
		middleware:    []Middleware{},
		defaultLogger: NewDefaultLogger(),
		options:       DefaultRunOptions(),
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Use adds middleware to the runner's middleware chain
func (r *Runner) Use(middleware ...Middleware) {
	r.middleware = append(r.middleware, middleware...)
}

// UseSpawnMiddleware adds spawn middleware to the runner. BeforeSpawn and
// AfterSpawn bracket every Spawn call; OnWorkerMessage is registered with
// the broker and fires for every message a worker sends.
func (r *Runner) UseSpawnMiddleware(middleware ...SpawnMiddleware) {
	for _, mw := range middleware {
		r.Broker.AddMessageCallback(mw.OnWorkerMessage)
	}
	r.spawnMiddleware = append(r.spawnMiddleware, middleware...)
}

// Execute runs a pipeline with the configured middleware chain
func (r *Runner) Execute(ctx context.Context, pipeline *Pipeline, logger Logger) error {
	if logger == nil {
		logger = r.defaultLogger
	}

	if ctx == nil {
		ctx = context.Background()
	}

	// Build the middleware chain
	var handler RunnerFunc = r.executePipeline

	// Apply middleware in reverse order
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	return handler(ctx, pipeline, logger)
}

// executePipeline is the core pipeline execution logic
func (r *Runner) executePipeline(ctx context.Context, p *Pipeline, logger Logger) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("pipeline '%s' has no steps to execute", p.ID)
	}

	logger.Info("Starting pipeline: %s (%s)", p.Name, p.ID)

	pipelineKey := PrefixPipeline + p.ID
	p.Store.SetProperty(pipelineKey, PropStatus, StatusRunning)

	if _, ok := p.Context["disabledSteps"]; !ok {
		p.Context["disabledSteps"] = make(map[string]bool)
	}

	disabledSteps, ok := p.Context["disabledSteps"].(map[string]bool)
	if !ok {
		disabledSteps = make(map[string]bool)
		p.Context["disabledSteps"] = disabledSteps
	}

	// Apply pipeline-level middleware around each step execution.
	var stepHandler PipelineStepRunnerFunc = r.executeStep
	for i := len(p.middleware) - 1; i >= 0; i-- {
		stepHandler = p.middleware[i](stepHandler)
	}

	// Steps are executed one by one; dynamic steps can be inserted during
	// execution, so the slice may grow while iterating.
	for i := 0; i < len(p.Steps); i++ {
		if err := ctx.Err(); err != nil {
			p.Store.SetProperty(pipelineKey, PropStatus, StatusFailed)
			return fmt.Errorf("pipeline '%s' canceled: %w", p.ID, err)
		}

		step := p.Steps[i]
		stepKey := PrefixStep + step.ID

		if disabledSteps[step.ID] {
			logger.Debug("Skipping disabled step: %s", step.Name)
			p.Store.SetProperty(stepKey, PropStatus, StatusSkipped)
			continue
		}

		p.Store.SetProperty(stepKey, PropStatus, StatusRunning)

		logger.Debug("Executing step %d/%d: %s", i+1, len(p.Steps), step.Name)
		if err := stepHandler(ctx, step, p, logger); err != nil {
			p.Store.SetProperty(stepKey, PropStatus, StatusFailed)
			p.Store.SetProperty(pipelineKey, PropStatus, StatusFailed)
			return fmt.Errorf("step '%s' failed: %w", step.Name, err)
		}

		// Insert any steps generated during this step's execution.
		if dynamicSteps, ok := p.Context["dynamicSteps"]; ok {
			if steps, ok := dynamicSteps.([]*Step); ok && len(steps) > 0 {
				logger.Debug("Found %d dynamic steps to insert after step %s", len(steps), step.ID)

				newSteps := make([]*Step, 0, len(p.Steps)+len(steps))
				newSteps = append(newSteps, p.Steps[:i+1]...)

				for _, dynStep := range steps {
					if !dynStep.HasTag(TagDynamic) {
						dynStep.AddTag(TagDynamic)
					}

					dynStepKey := PrefixStep + dynStep.ID
					dynStepInfo := dynStep.toStepInfo()

					meta := store.NewMetadata()
					meta.Tags = append(meta.Tags, dynStep.Tags...)
					meta.Description = dynStep.Description
					meta.SetProperty(PropStatus, StatusPending)
					meta.SetProperty(PropCreatedBy, "step:"+step.ID)

					p.Store.PutWithMetadata(dynStepKey, dynStepInfo, meta)
				}

				newSteps = append(newSteps, steps...)
				if i+1 < len(p.Steps) {
					newSteps = append(newSteps, p.Steps[i+1:]...)
				}
				p.Steps = newSteps

				delete(p.Context, "dynamicSteps")

				p.saveToStore()
			}
		}

		logger.Info("Completed step %d/%d: %s", i+1, len(p.Steps), step.Name)
		p.Store.SetProperty(stepKey, PropStatus, StatusCompleted)
	}

	logger.Info("Pipeline completed successfully: %s", p.Name)
	p.Store.SetProperty(pipelineKey, PropStatus, StatusCompleted)
	return nil
}

// executeStep runs all tasks in a step sequentially.
// If dynamic tasks are generated during execution, they are inserted after
// the current task and executed in the same step. If dynamic steps are
// generated, they are stored for execution after this step.
func (r *Runner) executeStep(ctx context.Context, s *Step, pipeline *Pipeline, logger Logger) error {
	// Apply step-level middleware around the core task loop.
	var handler StepRunnerFunc = r.runStepTasks
	for i := len(s.middleware) - 1; i >= 0; i-- {
		handler = s.middleware[i](handler)
	}
	return handler(ctx, s, pipeline, logger)
}

// runStepTasks is the core task loop for a single step.
func (r *Runner) runStepTasks(ctx context.Context, s *Step, pipeline *Pipeline, logger Logger) error {
	if len(s.Tasks) == 0 {
		logger.Warn("Step '%s' has no tasks to execute", s.ID)
		return nil
	}

	// Merge the step's initial store data into the pipeline's store.
	if init := s.getInitialStore(); init != nil && pipeline.Store != nil && init.Count() > 0 {
		copied, overwritten, err := pipeline.Store.CopyFromWithOverwrite(init)
		if err != nil {
			logger.Error("Failed to copy step's initial store: %v", err)
		} else {
			logger.Debug("Copied %d keys, overwrote %d keys from step's initial store", copied, overwritten)
		}
	}

	taskCtx := &TaskContext{
		GoContext:     ctx,
		Pipeline:      pipeline,
		Step:          s,
		Task:          nil,
		Logger:        logger,
		dynamicTasks:  []Task{},
		dynamicSteps:  []*Step{},
		disabledTasks: make(map[string]bool),
		disabledSteps: make(map[string]bool),
	}

	if disabled, ok := pipeline.Context["disabledTasks"]; ok {
		if disabledMap, ok := disabled.(map[string]bool); ok {
			taskCtx.disabledTasks = disabledMap
		}
	}

	if disabled, ok := pipeline.Context["disabledSteps"]; ok {
		if disabledMap, ok := disabled.(map[string]bool); ok {
			taskCtx.disabledSteps = disabledMap
		}
	}

	// Apply the step's task middleware around each task execution.
	var runTask TaskRunnerFunc = func(tc *TaskContext, task Task, index int, isLast bool) error {
		return task.Execute(tc)
	}
	for i := len(s.taskMiddleware) - 1; i >= 0; i-- {
		runTask = s.taskMiddleware[i](runTask)
	}

	// Tasks are executed one by one; dynamic tasks can be inserted during
	// execution.
	for i := 0; i < len(s.Tasks); i++ {
		task := s.Tasks[i]
		taskKey := PrefixTask + s.ID + ":" + task.Name()

		pipeline.Store.SetProperty(taskKey, PropStatus, StatusRunning)

		if taskCtx.disabledTasks[task.Name()] {
			logger.Debug("Skipping disabled task: %s", task.Name())
			pipeline.Store.SetProperty(taskKey, PropStatus, StatusSkipped)
			continue
		}

		logger.Debug("Executing task %d/%d: %s", i+1, len(s.Tasks), task.Name())

		taskCtx.Task = task

		if err := runTask(taskCtx, task, i, i == len(s.Tasks)-1); err != nil {
			pipeline.Store.SetProperty(taskKey, PropStatus, StatusFailed)
			return fmt.Errorf("task '%s' failed: %w", task.Name(), err)
		}

		// Insert any tasks generated by this task.
		if len(taskCtx.dynamicTasks) > 0 {
			logger.Debug("Task generated %d new tasks", len(taskCtx.dynamicTasks))

			newTasks := make([]Task, 0, len(s.Tasks)+len(taskCtx.dynamicTasks))
			newTasks = append(newTasks, s.Tasks[:i+1]...)

			for _, dynTask := range taskCtx.dynamicTasks {
				dynTaskKey := PrefixTask + s.ID + ":" + dynTask.Name()

				meta := store.NewMetadata()
				for _, tag := range dynTask.Tags() {
					meta.AddTag(tag)
				}
				meta.AddTag(TagDynamic)
				meta.Description = dynTask.Description()
				meta.SetProperty(PropCreatedBy, "task:"+task.Name())
				meta.SetProperty(PropStatus, StatusPending)

				pipeline.Store.PutWithMetadata(dynTaskKey, dynTask.Description(), meta)
			}

			newTasks = append(newTasks, taskCtx.dynamicTasks...)
			if i+1 < len(s.Tasks) {
				newTasks = append(newTasks, s.Tasks[i+1:]...)
			}
			s.Tasks = newTasks

			taskCtx.dynamicTasks = []Task{}
		}

		// Steps generated by this task run after the current step completes.
		if len(taskCtx.dynamicSteps) > 0 {
			logger.Debug("Task generated %d new steps", len(taskCtx.dynamicSteps))
			pipeline.Context["dynamicSteps"] = taskCtx.dynamicSteps
			taskCtx.dynamicSteps = []*Step{}
		}

		logger.Debug("Completed task %d/%d: %s", i+1, len(s.Tasks), task.Name())
		pipeline.Store.SetProperty(taskKey, PropStatus, StatusCompleted)
	}

	pipeline.Context["disabledTasks"] = taskCtx.disabledTasks
	pipeline.Context["disabledSteps"] = taskCtx.disabledSteps

	return nil
}

// RunResult contains the result of a pipeline execution
type RunResult struct {
	// RunID uniquely identifies this execution
	RunID string
	// PipelineID identifies the executed pipeline
	PipelineID string
	// Success reports whether the run completed without error
	Success bool
	// Error holds the failure that aborted the run, if any
	Error error
	// StartedAt is when the run began
	StartedAt time.Time
	// ExecutionTime is the total run duration
	ExecutionTime time.Duration
	// FinalStore contains the pipeline's store state after execution
	FinalStore map[string]interface{}
}

// RunOptions contains options for pipeline execution
type RunOptions struct {
	// Logger to use for the pipeline execution
	Logger Logger

	// Context to use for the pipeline execution
	Context context.Context

	// InitialStore contains key-value pairs to populate the pipeline store
	// before execution
	InitialStore map[string]interface{}
}

// DefaultRunOptions returns the default options for running a pipeline
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Logger:  NewDefaultLogger(),
		Context: context.Background(),
	}
}

// ExecuteWithOptions runs a pipeline with the given options
func (r *Runner) ExecuteWithOptions(pipeline *Pipeline, options RunOptions) RunResult {
	startTime := time.Now()

	logger := options.Logger
	if logger == nil {
		logger = r.defaultLogger
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if options.InitialStore != nil {
		for key, value := range options.InitialStore {
			pipeline.Store.Put(key, value)
		}
	}

	err := r.Execute(ctx, pipeline, logger)

	return RunResult{
		RunID:         uuid.NewString(),
		PipelineID:    pipeline.ID,
		Success:       err == nil,
		Error:         err,
		StartedAt:     startTime,
		ExecutionTime: time.Since(startTime),
		FinalStore:    pipeline.Store.ExportAll(),
	}
}

// LoggingMiddleware logs the outcome and duration of every run passing
// through the runner.
func LoggingMiddleware() Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, pipeline *Pipeline, logger Logger) error {
			start := time.Now()
			logger.Info("run starting: %s", pipeline.ID)

			err := next(ctx, pipeline, logger)

			elapsed := time.Since(start).Round(time.Millisecond)
			if err != nil {
				logger.Error("run failed: %s after %s: %v", pipeline.ID, elapsed, err)
				return err
			}
			logger.Info("run finished: %s in %s", pipeline.ID, elapsed)
			return nil
		}
	}
}

// StoreInjectionMiddleware seeds the pipeline store before execution.
// Seeded keys overwrite values the pipeline already holds.
func StoreInjectionMiddleware(seed map[string]interface{}) Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, pipeline *Pipeline, logger Logger) error {
			for key, value := range seed {
				if err := pipeline.Store.Put(key, value); err != nil {
					return fmt.Errorf("failed to seed store key '%s': %w", key, err)
				}
			}
			return next(ctx, pipeline, logger)
		}
	}
}

// TimeLimitMiddleware aborts a run that exceeds the given duration.
func TimeLimitMiddleware(limit time.Duration) Middleware {
	return func(next RunnerFunc) RunnerFunc {
		return func(ctx context.Context, pipeline *Pipeline, logger Logger) error {
			runCtx, cancel := context.WithTimeout(ctx, limit)
			defer cancel()

			err := next(runCtx, pipeline, logger)
			if err != nil && runCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("pipeline '%s' exceeded the %s time limit: %w", pipeline.ID, limit, err)
			}
			return err
		}
	}
}
