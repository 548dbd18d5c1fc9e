package colship

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sasha-s/go-deadlock"
)

// MessageType is a string that defines the purpose of a message.
type MessageType string

const (
	// MessageTypeLog is for sending log messages between processes.
	MessageTypeLog MessageType = "log"
	// MessageTypeStorePut is for synchronizing a single store.Put operation.
	MessageTypeStorePut MessageType = "store_put"
	// MessageTypeStoreDelete is for synchronizing a single store.Delete operation.
	MessageTypeStoreDelete MessageType = "store_delete"
	// MessageTypePipelineStart is the initial message from parent to worker to start execution.
	MessageTypePipelineStart MessageType = "pipeline_start"
	// MessageTypePipelineResult is the final message from worker to parent with the outcome.
	MessageTypePipelineResult MessageType = "pipeline_result"
	// MessageTypeFinalStore is sent from worker to parent with the complete final store state.
	MessageTypeFinalStore MessageType = "final_store"
)

// Message is the standard unit of communication between a parent and worker process.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MessageHandler is a function that processes a received message.
type MessageHandler func(msgType MessageType, payload json.RawMessage) error

// IPCMiddleware allows customization of inter-process communication
type IPCMiddleware interface {
	// ProcessOutbound is called before sending a message from worker to parent
	ProcessOutbound(msgType MessageType, payload interface{}) (MessageType, interface{}, error)

	// ProcessInbound is called when parent receives a message from worker
	ProcessInbound(msgType MessageType, payload json.RawMessage) (MessageType, json.RawMessage, error)
}

// IPCMiddlewareFunc is a function adapter for IPCMiddleware
type IPCMiddlewareFunc struct {
	ProcessOutboundFunc func(MessageType, interface{}) (MessageType, interface{}, error)
	ProcessInboundFunc  func(MessageType, json.RawMessage) (MessageType, json.RawMessage, error)
}

func (f IPCMiddlewareFunc) ProcessOutbound(msgType MessageType, payload interface{}) (MessageType, interface{}, error) {
	if f.ProcessOutboundFunc != nil {
		return f.ProcessOutboundFunc(msgType, payload)
	}
	return msgType, payload, nil
}

func (f IPCMiddlewareFunc) ProcessInbound(msgType MessageType, payload json.RawMessage) (MessageType, json.RawMessage, error) {
	if f.ProcessInboundFunc != nil {
		return f.ProcessInboundFunc(msgType, payload)
	}
	return msgType, payload, nil
}

// SpawnMiddleware provides hooks for spawn process lifecycle and communication
type SpawnMiddleware interface {
	// BeforeSpawn is called before creating a worker process
	BeforeSpawn(def PipelineDef) (PipelineDef, error)

	// AfterSpawn is called after the worker process completes (success or failure)
	AfterSpawn(def PipelineDef, err error) error

	// OnWorkerMessage is called when the parent receives any message from the worker
	OnWorkerMessage(msgType MessageType, payload json.RawMessage) error
}

// SpawnMiddlewareFunc is a function adapter for SpawnMiddleware
type SpawnMiddlewareFunc struct {
	BeforeSpawnFunc     func(PipelineDef) (PipelineDef, error)
	AfterSpawnFunc      func(PipelineDef, error) error
	OnWorkerMessageFunc func(MessageType, json.RawMessage) error
}

func (f SpawnMiddlewareFunc) BeforeSpawn(def PipelineDef) (PipelineDef, error) {
	if f.BeforeSpawnFunc != nil {
		return f.BeforeSpawnFunc(def)
	}
	return def, nil
}

func (f SpawnMiddlewareFunc) AfterSpawn(def PipelineDef, err error) error {
	if f.AfterSpawnFunc != nil {
		return f.AfterSpawnFunc(def, err)
	}
	return nil
}

func (f SpawnMiddlewareFunc) OnWorkerMessage(msgType MessageType, payload json.RawMessage) error {
	if f.OnWorkerMessageFunc != nil {
		return f.OnWorkerMessageFunc(msgType, payload)
	}
	return nil
}

// RunnerBroker handles message sending, receiving, and routing between the
// parent process and spawned workers. Messages are JSON encoded, one per
// line, over the worker's stdout pipe.
type RunnerBroker struct {
	mu               deadlock.RWMutex
	output           io.Writer
	handlers         map[MessageType]MessageHandler
	defaultHandler   MessageHandler
	middleware       []IPCMiddleware
	messageCallbacks []func(MessageType, json.RawMessage) error
}

// NewRunnerBroker creates a new broker for IPC communication.
// The output writer receives outbound messages; it may be nil on the parent
// side, which only listens.
func NewRunnerBroker(output io.Writer) *RunnerBroker {
	return &RunnerBroker{
		output:           output,
		handlers:         make(map[MessageType]MessageHandler),
		middleware:       make([]IPCMiddleware, 0),
		messageCallbacks: make([]func(MessageType, json.RawMessage) error, 0),
	}
}

// RegisterHandler registers a handler for a specific message type.
func (b *RunnerBroker) RegisterHandler(msgType MessageType, handler MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[msgType] = handler
}

// SetDefaultHandler sets a handler for any message types that are not explicitly registered.
func (b *RunnerBroker) SetDefaultHandler(handler MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaultHandler = handler
}

// AddIPCMiddleware adds IPC middleware to the broker
func (b *RunnerBroker) AddIPCMiddleware(middleware ...IPCMiddleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middleware = append(b.middleware, middleware...)
}

// AddMessageCallback adds a callback that will be called for every received message
func (b *RunnerBroker) AddMessageCallback(callback func(MessageType, json.RawMessage) error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messageCallbacks = append(b.messageCallbacks, callback)
}

// Send sends a message through the IPC middleware chain
func (b *RunnerBroker) Send(msgType MessageType, payload interface{}) error {
	b.mu.RLock()
	output := b.output
	middleware := make([]IPCMiddleware, len(b.middleware))
	copy(middleware, b.middleware)
	b.mu.RUnlock()

	if output == nil {
		return fmt.Errorf("broker has no output writer")
	}

	currentType := msgType
	currentPayload := payload
	var err error

	for _, mw := range middleware {
		currentType, currentPayload, err = mw.ProcessOutbound(currentType, currentPayload)
		if err != nil {
			return fmt.Errorf("IPC middleware error: %w", err)
		}
	}

	payloadBytes, err := json.Marshal(currentPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	msg := Message{
		Type:    currentType,
		Payload: json.RawMessage(payloadBytes),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	data = append(data, '\n')

	_, err = output.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Listen reads and processes messages from the given reader through middleware.
// It returns nil when the stream ends.
func (b *RunnerBroker) Listen(reader io.Reader) error {
	decoder := json.NewDecoder(reader)

	for {
		var msg Message
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("failed to decode message: %w", err)
		}

		b.mu.RLock()
		middleware := make([]IPCMiddleware, len(b.middleware))
		copy(middleware, b.middleware)
		b.mu.RUnlock()

		currentType := msg.Type
		currentPayload := msg.Payload
		var err error

		for _, mw := range middleware {
			currentType, currentPayload, err = mw.ProcessInbound(currentType, currentPayload)
			if err != nil {
				return fmt.Errorf("IPC middleware inbound error: %w", err)
			}
		}

		b.mu.RLock()
		handler, exists := b.handlers[currentType]
		if !exists {
			handler = b.defaultHandler
		}
		callbacks := make([]func(MessageType, json.RawMessage) error, len(b.messageCallbacks))
		copy(callbacks, b.messageCallbacks)
		b.mu.RUnlock()

		if handler != nil {
			if err := handler(currentType, currentPayload); err != nil {
				// A failing handler must not stop the stream; later messages
				// may still carry the run result.
				fmt.Fprintf(os.Stderr, "Handler error for message type %s: %v\n", currentType, err)
			}
		}

		for _, callback := range callbacks {
			if err := callback(currentType, currentPayload); err != nil {
				fmt.Fprintf(os.Stderr, "Message callback error for message type %s: %v\n", currentType, err)
			}
		}
	}
}

// SetOutput replaces the broker's output writer. Worker processes call this
// once their stdout pipe is established.
func (b *RunnerBroker) SetOutput(output io.Writer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = output
}

// LogPayload is the payload of a MessageTypeLog message.
type LogPayload struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// ResultPayload is the payload of a MessageTypePipelineResult message.
type ResultPayload struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// brokerLogger forwards log output to the parent process through a broker.
type brokerLogger struct {
	broker *RunnerBroker
}

// NewBrokerLogger creates a Logger that sends every entry to the parent
// process as a MessageTypeLog message.
func NewBrokerLogger(broker *RunnerBroker) Logger {
	return &brokerLogger{broker: broker}
}

func (l *brokerLogger) send(level, format string, args ...interface{}) {
	// Errors here are swallowed: losing a log line must not fail the task.
	l.broker.Send(MessageTypeLog, LogPayload{
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
}

func (l *brokerLogger) Debug(format string, args ...interface{}) { l.send("debug", format, args...) }
func (l *brokerLogger) Info(format string, args ...interface{})  { l.send("info", format, args...) }
func (l *brokerLogger) Warn(format string, args ...interface{})  { l.send("warn", format, args...) }
func (l *brokerLogger) Error(format string, args ...interface{}) { l.send("error", format, args...) }
