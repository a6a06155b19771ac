package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jewelryops/opsagent/logging"
)

// Registry is the single choke point for tool dispatch. It validates
// arguments against the registered descriptor's schema, invokes the provider
// function, and normalizes every failure into the package's error taxonomy.
// Registration order is preserved so DescribeAll is stable.
//
// Registry never consults the confirmation gate: gating happens one layer up
// in the engine, which calls Invoke only after a required confirmation has
// cleared. Decoupling the two keeps read-only dispatch free of any
// confirmation overhead.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]registration
	order  []string
	logger logging.Logger
}

type registration struct {
	desc   Descriptor
	invoke InvokeFunc
}

// NewRegistry constructs an empty registry. A nil logger is replaced with a
// no-op logger.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{tools: map[string]registration{}, logger: logger}
}

// Register adds a tool. It fails with ErrDuplicateTool when the name is
// already taken.
func (r *Registry) Register(desc Descriptor, invoke InvokeFunc) error {
	if desc.Name == "" {
		return fmt.Errorf("tool descriptor has no name")
	}
	if invoke == nil {
		return fmt.Errorf("tool %s has no invoke function", desc.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, desc.Name)
	}
	r.tools[desc.Name] = registration{desc: desc, invoke: invoke}
	r.order = append(r.order, desc.Name)
	return nil
}

// DescribeAll returns every registered descriptor in registration order.
// The slice is a copy; mutating it does not affect the registry.
func (r *Registry) DescribeAll() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].desc)
	}
	return out
}

// Describe returns the descriptor for a single tool.
func (r *Registry) Describe(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return reg.desc, nil
}

// Invoke dispatches a tool call. Failure modes:
//   - ErrUnknownTool — the name was never registered
//   - *ValidationError — raw arguments are not valid JSON or violate the schema
//   - *ProviderError — the provider returned an error, panicked, or produced
//     a result that does not serialize
//
// On success the provider's result is returned as canonical JSON.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, &ValidationError{Tool: name, Message: "arguments are not a JSON object: " + err.Error()}
		}
	}
	if err := validateArguments(name, args, reg.desc.Parameters); err != nil {
		r.logger.Warn("tool.invoke.validation_failed", "tool", name, "error", err.Error())
		return nil, err
	}

	start := time.Now()
	result, err := r.callProvider(ctx, name, reg.invoke, args)
	if err != nil {
		r.logger.Error("tool.invoke.failed", "tool", name, "duration_ms", time.Since(start).Milliseconds(), "error", err.Error())
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return nil, NewProviderError(name, "BAD_RESULT", "result not serializable: "+err.Error(), false, err)
	}
	r.logger.Info("tool.invoke.ok", "tool", name, "duration_ms", time.Since(start).Milliseconds())
	return payload, nil
}

// callProvider runs the provider with panic recovery so a misbehaving tool
// becomes an observable ProviderError instead of taking the loop down.
func (r *Registry) callProvider(ctx context.Context, name string, invoke InvokeFunc, args map[string]any) (result any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool.invoke.panic", "tool", name, "recover", fmt.Sprintf("%v", rec))
			err = NewProviderError(name, "PANIC", fmt.Sprintf("provider panicked: %v", rec), false, nil)
		}
	}()

	result, err = invoke(ctx, args)
	if err != nil {
		var pErr *ProviderError
		if errors.As(err, &pErr) {
			return nil, pErr
		}
		transient := ctx.Err() != nil // cancellations and deadlines are retryable
		return nil, NewProviderError(name, "", err.Error(), transient, err)
	}
	return result, nil
}
