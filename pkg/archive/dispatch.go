package archive

import "fmt"

// HandlerFunc processes the payload of one entry.
type HandlerFunc func(e Entry) error

// Registry maps resource type names to handlers.
type Registry struct {
	handlers map[string]HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Handle registers h for typeName, replacing any earlier handler. A nil h
// removes the registration.
func (r *Registry) Handle(typeName string, h HandlerFunc) {
	if h == nil {
		delete(r.handlers, typeName)
		return
	}
	r.handlers[typeName] = h
}

// Lookup returns the handler registered for typeName.
func (r *Registry) Lookup(typeName string) (HandlerFunc, bool) {
	if r == nil {
		return nil, false
	}
	h, ok := r.handlers[typeName]
	return h, ok
}

// Dispatch hands every entry with a payload to the handler for its type.
// Entries of unregistered types and proxies are skipped. It returns how
// many entries were handled and stops at the first handler error.
func (a *Archive) Dispatch(r *Registry) (int, error) {
	handled := 0
	for _, e := range a.entries {
		if e.Proxy {
			continue
		}
		h, ok := r.Lookup(e.Type)
		if !ok {
			continue
		}
		if err := h(e); err != nil {
			return handled, fmt.Errorf("handle %s %s: %w", e.Type, e.Name, err)
		}
		handled++
	}
	return handled, nil
}
