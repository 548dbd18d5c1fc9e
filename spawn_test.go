package colship

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colship/colship/store"
)

// TestMain lets the test binary be re-executed as a worker process. Spawn
// starts the binary with the worker env marker set; in that mode the process
// speaks the IPC protocol over stdio instead of running tests.
func TestMain(m *testing.M) {
	if IsWorkerProcess() {
		registerSpawnTestTasks()
		if err := RunWorker(os.Stdin, os.Stdout); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}
	os.Exit(m.Run())
}

const (
	spawnEchoTaskID  = "spawn-echo-task"
	spawnErrorTaskID = "spawn-error-task"
	spawnStoreTaskID = "spawn-store-task"
)

var registerSpawnOnce sync.Once

func registerSpawnTestTasks() {
	registerSpawnOnce.Do(func() {
		RegisterTask(spawnEchoTaskID, func() Task {
			return NewFuncTask(spawnEchoTaskID, "Logs a pair of messages", func(ctx *TaskContext) error {
				ctx.Logger.Info("echo task is executing")
				ctx.Logger.Info("echo task has finished")
				return nil
			})
		})
		RegisterTask(spawnErrorTaskID, func() Task {
			return NewFuncTask(spawnErrorTaskID, "Always fails", func(ctx *TaskContext) error {
				ctx.Logger.Error("this task is designed to fail")
				return fmt.Errorf("intentional task failure")
			})
		})
		RegisterTask(spawnStoreTaskID, func() Task {
			return NewFuncTask(spawnStoreTaskID, "Writes to the pipeline store", func(ctx *TaskContext) error {
				input := TaskParam(ctx, spawnStoreTaskID, "input", "")
				if err := ctx.Store().Put("worker-output", "processed:"+input); err != nil {
					return err
				}
				return ctx.Store().Put("worker-count", 42)
			})
		})
	})
}

func TestSpawnPipeline_Success(t *testing.T) {
	registerSpawnTestTasks()

	runner := NewRunner()

	var logs []string
	runner.Broker.RegisterHandler(MessageTypeLog, func(msgType MessageType, payload json.RawMessage) error {
		var entry LogPayload
		if err := json.Unmarshal(payload, &entry); err != nil {
			return err
		}
		logs = append(logs, entry.Message)
		return nil
	})

	def := PipelineDef{
		ID: "worker-pipeline",
		Steps: []StepDef{{
			ID:    "worker-step",
			Tasks: []TaskDef{{ID: spawnEchoTaskID}},
		}},
	}

	err := runner.Spawn(context.Background(), def)
	require.NoError(t, err)

	assert.Contains(t, logs, "echo task is executing")
	assert.Contains(t, logs, "echo task has finished")
}

func TestSpawnPipeline_WithError(t *testing.T) {
	registerSpawnTestTasks()

	runner := NewRunner()

	var result ResultPayload
	var gotResult bool
	runner.Broker.RegisterHandler(MessageTypePipelineResult, func(msgType MessageType, payload json.RawMessage) error {
		gotResult = true
		return json.Unmarshal(payload, &result)
	})

	def := PipelineDef{
		ID: "failing-worker-pipeline",
		Steps: []StepDef{{
			ID:    "failing-step",
			Tasks: []TaskDef{{ID: spawnErrorTaskID}},
		}},
	}

	err := runner.Spawn(context.Background(), def)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "worker process exited with error")

	// The result message still arrives before the worker exits.
	assert.True(t, gotResult)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "intentional task failure")
}

func TestSpawnPipeline_FinalStore(t *testing.T) {
	registerSpawnTestTasks()

	runner := NewRunner()

	finalStore := store.NewKVStore()
	runner.Broker.RegisterHandler(MessageTypeFinalStore, func(msgType MessageType, payload json.RawMessage) error {
		var data map[string]interface{}
		if err := json.Unmarshal(payload, &data); err != nil {
			return err
		}
		for key, value := range data {
			if err := finalStore.Put(key, value); err != nil {
				return err
			}
		}
		return nil
	})

	def := PipelineDef{
		ID: "store-worker-pipeline",
		Steps: []StepDef{{
			ID: "store-step",
			Tasks: []TaskDef{{
				ID:     spawnStoreTaskID,
				Params: map[string]interface{}{"input": "payload"},
			}},
		}},
		InitialStore: map[string]interface{}{"seeded": "from-parent"},
	}

	err := runner.Spawn(context.Background(), def)
	require.NoError(t, err)

	output, err := store.Get[string](finalStore, "worker-output")
	assert.NoError(t, err)
	assert.Equal(t, "processed:payload", output)

	// JSON numbers decode as float64 on the way back.
	count, err := store.Get[float64](finalStore, "worker-count")
	assert.NoError(t, err)
	assert.Equal(t, 42.0, count)

	seeded, err := store.Get[string](finalStore, "seeded")
	assert.NoError(t, err)
	assert.Equal(t, "from-parent", seeded)
}

func TestRunWorkerWithMalformedDefinition(t *testing.T) {
	var out bytes.Buffer
	err := RunWorker(bytes.NewBufferString("{not json"), &out)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode pipeline definition")
}

func TestRunWorkerDirect(t *testing.T) {
	registerSpawnTestTasks()

	def := PipelineDef{
		ID: "direct-worker",
		Steps: []StepDef{{
			ID:    "step",
			Tasks: []TaskDef{{ID: spawnEchoTaskID}},
		}},
	}
	defBytes, err := json.Marshal(def)
	require.NoError(t, err)

	var out bytes.Buffer
	err = RunWorker(bytes.NewReader(defBytes), &out)
	require.NoError(t, err)

	// The output stream ends with the final store and the result message.
	var sawFinalStore, sawResult bool
	broker := NewRunnerBroker(nil)
	broker.RegisterHandler(MessageTypeFinalStore, func(msgType MessageType, payload json.RawMessage) error {
		sawFinalStore = true
		return nil
	})
	broker.RegisterHandler(MessageTypePipelineResult, func(msgType MessageType, payload json.RawMessage) error {
		sawResult = true
		var result ResultPayload
		if err := json.Unmarshal(payload, &result); err != nil {
			return err
		}
		assert.True(t, result.Success)
		return nil
	})

	err = broker.Listen(&out)
	require.NoError(t, err)
	assert.True(t, sawFinalStore)
	assert.True(t, sawResult)
}

func TestSpawnMiddlewareHooks(t *testing.T) {
	registerSpawnTestTasks()

	var beforeCalls int
	var afterErr error
	var afterCalled bool
	var messages int

	mw := SpawnMiddlewareFunc{
		BeforeSpawnFunc: func(def PipelineDef) (PipelineDef, error) {
			beforeCalls++
			def.Name = "renamed-by-hook"
			return def, nil
		},
		AfterSpawnFunc: func(def PipelineDef, err error) error {
			afterCalled = true
			afterErr = err
			// The definition handed to AfterSpawn carries the
			// BeforeSpawn rewrite.
			assert.Equal(t, "renamed-by-hook", def.Name)
			return nil
		},
		OnWorkerMessageFunc: func(msgType MessageType, payload json.RawMessage) error {
			messages++
			return nil
		},
	}

	runner := NewRunner(WithSpawnMiddleware(mw))

	def := PipelineDef{
		ID: "hooked-pipeline",
		Steps: []StepDef{{
			ID:    "step",
			Tasks: []TaskDef{{ID: spawnEchoTaskID}},
		}},
	}

	err := runner.Spawn(context.Background(), def)
	require.NoError(t, err)

	assert.Equal(t, 1, beforeCalls)
	assert.True(t, afterCalled)
	assert.NoError(t, afterErr)
	// At minimum the two echo logs, the final store and the result.
	assert.GreaterOrEqual(t, messages, 4)
}

func TestSpawnMiddlewareBeforeSpawnAborts(t *testing.T) {
	registerSpawnTestTasks()

	mw := SpawnMiddlewareFunc{
		BeforeSpawnFunc: func(def PipelineDef) (PipelineDef, error) {
			return def, fmt.Errorf("not allowed")
		},
	}
	runner := NewRunner(WithSpawnMiddleware(mw))

	err := runner.Spawn(context.Background(), PipelineDef{ID: "blocked"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
}
