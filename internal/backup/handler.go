package backup

import (
	"fmt"
	"sort"
)

// HandlerRegistry holds the component handlers known to the orchestrators.
// Registration order is preserved for backup runs so component export order
// is deterministic.
type HandlerRegistry struct {
	handlers map[string]ComponentHandler
	order    []string
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]ComponentHandler),
	}
}

// Register adds a handler under its component name
func (r *HandlerRegistry) Register(handler ComponentHandler) error {
	name := handler.Name()
	if name == "" {
		return NewConfigurationError("component handler must have a name", nil)
	}
	if _, exists := r.handlers[name]; exists {
		return NewConflictError(fmt.Sprintf("component handler %s is already registered", name), nil)
	}

	r.handlers[name] = handler
	r.order = append(r.order, name)

	return nil
}

// Get returns the handler for a component name
func (r *HandlerRegistry) Get(name string) (ComponentHandler, error) {
	handler, exists := r.handlers[name]
	if !exists {
		return nil, NewNotFoundError(fmt.Sprintf("no handler registered for component %s", name), nil)
	}
	return handler, nil
}

// Names returns the registered component names in registration order
func (r *HandlerRegistry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Handlers returns the handlers in registration order
func (r *HandlerRegistry) Handlers() []ComponentHandler {
	handlers := make([]ComponentHandler, 0, len(r.order))
	for _, name := range r.order {
		handlers = append(handlers, r.handlers[name])
	}
	return handlers
}

// Select returns the handlers for the requested component names, or all
// handlers when names is empty. Unknown names are an error; a backup that
// silently skips a requested component would misrepresent what it holds.
func (r *HandlerRegistry) Select(names []string) ([]ComponentHandler, error) {
	if len(names) == 0 {
		return r.Handlers(), nil
	}

	var selected []ComponentHandler
	var missing []string
	for _, name := range names {
		handler, exists := r.handlers[name]
		if !exists {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, handler)
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, NewConfigurationError(fmt.Sprintf("unknown components requested: %v", missing), nil)
	}

	return selected, nil
}
