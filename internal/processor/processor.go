package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/vishalm/staycrest-sub000/internal/platform/logger"
)

// Task type constants
const (
	TypeEcho           = "echo"
	TypeHash           = "hash"
	TypeDeriveKey      = "derive_key"
	TypePasswordVerify = "password_verify"
	TypeEncrypt        = "encrypt"
	TypeDecrypt        = "decrypt"
	TypeEmbed          = "embed"
	TypeScoreResults   = "score_results"
)

// HandlerFunc executes one task type
type HandlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// UnknownTypeResult is the successful result of a task whose type has no handler
type UnknownTypeResult struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// Processor dispatches tasks to their handlers. It satisfies task.Processor.
type Processor struct {
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// New creates a Processor with the full handler table
func New(log *slog.Logger) *Processor {
	return &Processor{
		handlers: map[string]HandlerFunc{
			TypeEcho:           handleEcho,
			TypeHash:           handleHash,
			TypeDeriveKey:      handleDeriveKey,
			TypePasswordVerify: handlePasswordVerify,
			TypeEncrypt:        handleEncrypt,
			TypeDecrypt:        handleDecrypt,
			TypeEmbed:          handleEmbed,
			TypeScoreResults:   handleScoreResults,
		},
		logger: log.With("component", "task_processor"),
	}
}

// Process runs the handler registered for taskType
func (p *Processor) Process(ctx context.Context, taskType string, payload json.RawMessage) (any, error) {
	handler, ok := p.handlers[taskType]
	if !ok {
		logger.FromContextOrDefault(ctx, p.logger).Warn("unknown task type", "task_type", taskType)
		return UnknownTypeResult{Error: "unknown task type: " + taskType, Type: taskType}, nil
	}
	return handler(ctx, payload)
}

// Types returns the supported task types in sorted order
func (p *Processor) Types() []string {
	types := make([]string, 0, len(p.handlers))
	for t := range p.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Supports reports whether taskType has a handler
func (p *Processor) Supports(taskType string) bool {
	_, ok := p.handlers[taskType]
	return ok
}

// Global validator instance for reuse
var validate = validator.New()

// decode strictly unmarshals payload into v and validates its struct tags
func decode(payload json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalidPayload(err)
	}
	if err := validate.Struct(v); err != nil {
		return invalidPayload(err)
	}
	return nil
}

func handleEcho(_ context.Context, payload json.RawMessage) (any, error) {
	return payload, nil
}
