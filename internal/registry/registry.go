// ABOUTME: Process-wide registry of callable tools with schema-validated contracts.
// ABOUTME: Preserves registration order, rejects duplicates, and is sealed before serving.

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Handler executes a tool. It receives arguments that already conform to the
// tool's input schema and a context carrying the request's credential.
type Handler func(ctx context.Context, input json.RawMessage) (any, error)

// Definition declares a tool.
type Definition struct {
	Name         string
	Description  string
	InputSchema  json.RawMessage
	OutputSchema json.RawMessage // optional
	Handler      Handler
}

// Info is the public metadata of a tool. It never carries the handler.
type Info struct {
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	InputSchema  json.RawMessage `json:"inputSchema"`
	OutputSchema json.RawMessage `json:"outputSchema,omitempty"`
}

// entry stores a definition with its compiled schemas.
type entry struct {
	def    Definition
	input  *jsonschema.Schema
	output *jsonschema.Schema
}

// Registry holds tool definitions in registration order.
type Registry struct {
	mu     sync.RWMutex
	order  []*entry
	byName map[string]*entry
	sealed bool
	logger *slog.Logger
}

// New creates an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byName: make(map[string]*entry),
		logger: logger,
	}
}

// Register adds a tool definition.
// Returns *DuplicateToolError if the name exists; the first registration is kept.
// Returns ErrRegistrySealed once Seal has been called.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name required", ErrInvalidDefinition)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: tool %q has no handler", ErrInvalidDefinition, def.Name)
	}
	if len(def.InputSchema) == 0 {
		def.InputSchema = defaultInputSchema
	}

	input, err := compileSchema(def.Name, "input", def.InputSchema)
	if err != nil {
		return fmt.Errorf("%w: tool %q: %v", ErrInvalidDefinition, def.Name, err)
	}
	var output *jsonschema.Schema
	if len(def.OutputSchema) > 0 {
		output, err = compileSchema(def.Name, "output", def.OutputSchema)
		if err != nil {
			return fmt.Errorf("%w: tool %q: %v", ErrInvalidDefinition, def.Name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, def.Name)
	}
	if _, exists := r.byName[def.Name]; exists {
		return &DuplicateToolError{Name: def.Name}
	}

	e := &entry{def: def, input: input, output: output}
	r.order = append(r.order, e)
	r.byName[def.Name] = e

	r.logger.Debug("tool registered", "tool", def.Name, "total_tools", len(r.order))
	return nil
}

// Seal ends the initialization phase. Later registrations fail.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.sealed {
		r.sealed = true
		r.logger.Info("tool registry sealed", "tool_count", len(r.order))
	}
}

// List returns public metadata for every tool in registration order.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, len(r.order))
	for i, e := range r.order {
		infos[i] = Info{
			Name:         e.def.Name,
			Description:  e.def.Description,
			InputSchema:  e.def.InputSchema,
			OutputSchema: e.def.OutputSchema,
		}
	}
	return infos
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (Definition, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) lookup(name string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	return e, ok
}

// Invoke validates args against the tool's input contract and runs it.
// Missing or null args are treated as an empty object.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (any, error) {
	e, ok := r.lookup(name)
	if !ok {
		return nil, &ToolNotFoundError{Name: name}
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}
	if err := validate(e.input, args); err != nil {
		return nil, &InvalidArgumentsError{Tool: name, Detail: describeValidation(err), Err: err}
	}

	out, err := r.run(ctx, e, args)
	if err != nil {
		return nil, &ToolExecutionError{Tool: name, Err: err}
	}

	if e.output != nil {
		data, err := json.Marshal(out)
		if err != nil {
			return nil, &ToolExecutionError{Tool: name, Err: fmt.Errorf("encoding output: %w", err)}
		}
		if err := validate(e.output, data); err != nil {
			return nil, &ToolExecutionError{
				Tool: name,
				Err:  fmt.Errorf("output does not match contract: %s", describeValidation(err)),
			}
		}
	}
	return out, nil
}

// run calls the handler, converting a panic into an error.
func (r *Registry) run(ctx context.Context, e *entry, args json.RawMessage) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("tool handler panicked", "tool", e.def.Name, "panic", p)
			out, err = nil, fmt.Errorf("handler panic: %v", p)
		}
	}()
	return e.def.Handler(ctx, args)
}
