package colship

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// EnvWorkerMarker is set in a spawned worker's environment so the executable
// can detect it must run the worker code path.
const EnvWorkerMarker = "COLSHIP_EXEC_WORKER"

// Spawn executes a pipeline definition in a separate worker process.
//
// The parent re-executes its own binary (with the runner's spawn arguments,
// typically the hidden worker subcommand), writes the serialized definition
// to the worker's stdin, and consumes broker messages from the worker's
// stdout until the process exits. Log and store-sync messages arrive through
// the runner's Broker; the final result and store snapshot arrive as
// MessageTypePipelineResult and MessageTypeFinalStore messages.
func (r *Runner) Spawn(ctx context.Context, def PipelineDef) error {
	var err error
	for _, mw := range r.spawnMiddleware {
		if def, err = mw.BeforeSpawn(def); err != nil {
			return fmt.Errorf("spawn middleware rejected pipeline definition: %w", err)
		}
	}

	defBytes, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to serialize pipeline definition: %w", err)
	}

	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find executable path: %w", err)
	}

	cmd := exec.CommandContext(ctx, exePath, r.spawnArgs...)
	cmd.Env = append(os.Environ(), EnvWorkerMarker+"=1")

	workerStdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdin: %w", err)
	}
	workerStdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open worker stdout: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker process: %w", err)
	}

	// Consume messages from the worker's stdout until the pipe closes.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Listen returns on EOF when the worker exits; decode errors on a
		// torn-down pipe are not actionable here.
		_ = r.Broker.Listen(workerStdout)
	}()

	if _, err = workerStdin.Write(defBytes); err != nil {
		if cmd.ProcessState != nil {
			return fmt.Errorf("worker process exited early: %s", cmd.ProcessState.String())
		}
		return fmt.Errorf("failed to write pipeline definition to worker: %w", err)
	}
	workerStdin.Close() // signal EOF to the worker's reader

	err = cmd.Wait()
	wg.Wait()

	if err != nil {
		err = fmt.Errorf("worker process exited with error: %w", err)
	}
	for _, mw := range r.spawnMiddleware {
		if mwErr := mw.AfterSpawn(def, err); mwErr != nil && err == nil {
			err = mwErr
		}
	}

	return err
}

// RunWorker is the worker-side entrypoint. It reads a PipelineDef from the
// input stream, rebuilds the pipeline from the task registry, executes it,
// and streams log, final-store and result messages to the output stream.
//
// It returns the pipeline's execution error, if any, so the worker process
// can exit non-zero and the parent's Spawn call fails accordingly.
func RunWorker(input io.Reader, output io.Writer) error {
	broker := NewRunnerBroker(output)

	defBytes, err := io.ReadAll(input)
	if err != nil {
		return fmt.Errorf("failed to read pipeline definition: %w", err)
	}

	var def PipelineDef
	if err := json.Unmarshal(defBytes, &def); err != nil {
		return fmt.Errorf("failed to decode pipeline definition: %w", err)
	}

	pipeline, err := NewPipelineFromDef(&def)
	if err != nil {
		return fmt.Errorf("failed to build pipeline from definition: %w", err)
	}

	logger := NewBrokerLogger(broker)
	runner := NewRunner()

	runErr := runner.Execute(context.Background(), pipeline, logger)

	// Report the final store before the result so the parent has the
	// complete state when the result handler fires.
	broker.Send(MessageTypeFinalStore, pipeline.Store.ExportAll())

	result := ResultPayload{Success: runErr == nil}
	if runErr != nil {
		result.Error = runErr.Error()
	}
	broker.Send(MessageTypePipelineResult, result)

	return runErr
}

// IsWorkerProcess reports whether the current process was spawned as a
// pipeline worker.
func IsWorkerProcess() bool {
	return os.Getenv(EnvWorkerMarker) == "1"
}
