package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gmaild/internal/backend"
)

// Registry is an immutable method table.
type Registry struct {
	methods []MethodInfo
	index   map[string]int
}

// NewRegistry builds a registry from methods in the given order.
func NewRegistry(methods ...MethodInfo) (*Registry, error) {
	r := &Registry{
		methods: make([]MethodInfo, 0, len(methods)),
		index:   make(map[string]int, len(methods)),
	}
	for _, m := range methods {
		name := strings.TrimSpace(m.Name)
		if name == "" || name != m.Name {
			return nil, fmt.Errorf("invalid method name %q", m.Name)
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate method %q", name)
		}
		seen := make(map[string]struct{}, len(m.Params))
		for _, p := range m.Params {
			if p.Name == "" {
				return nil, fmt.Errorf("method %s: parameter without name", name)
			}
			if _, dup := seen[p.Name]; dup {
				return nil, fmt.Errorf("method %s: duplicate parameter %q", name, p.Name)
			}
			seen[p.Name] = struct{}{}
			if p.Required && p.Default != nil {
				return nil, fmt.Errorf("method %s: required parameter %q cannot have a default", name, p.Name)
			}
		}
		r.index[name] = len(r.methods)
		r.methods = append(r.methods, m.clone())
	}
	if len(r.methods) == 0 {
		return nil, errors.New("registry needs at least one method")
	}
	return r, nil
}

// MethodList returns a copy of the table in declaration order.
func (r *Registry) MethodList() []MethodInfo {
	out := make([]MethodInfo, len(r.methods))
	for i, m := range r.methods {
		out[i] = m.clone()
	}
	return out
}

// Names returns the method names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.methods))
	for i, m := range r.methods {
		out[i] = m.Name
	}
	return out
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (MethodInfo, bool) {
	idx, ok := r.index[name]
	if !ok {
		return MethodInfo{}, false
	}
	return r.methods[idx].clone(), true
}

// Prepare validates params for method and returns a copy with defaults applied.
func (r *Registry) Prepare(method string, params Params) (Params, error) {
	idx, ok := r.index[method]
	if !ok {
		return nil, backend.Errorf(backend.KindUnknownMethod, "unknown method: %s", method)
	}
	info := r.methods[idx]
	for _, p := range info.Params {
		if p.Required && backend.IsBlank(params[p.Name]) {
			return nil, &backend.Error{Kind: backend.KindMissingRequiredParam, Message: p.Name}
		}
	}
	prepared := params.Clone()
	for _, p := range info.Params {
		if p.Default == nil {
			continue
		}
		if v, ok := prepared[p.Name]; !ok || v == nil {
			prepared[p.Name] = p.Default
		}
	}
	return prepared, nil
}

// Dispatch validates the call and forwards it to exec. The executor is not
// invoked when validation fails; its result and error are returned unchanged.
func (r *Registry) Dispatch(ctx context.Context, exec backend.Executor, method string, params Params) (any, error) {
	prepared, err := r.Prepare(method, params)
	if err != nil {
		return nil, err
	}
	return exec.Invoke(ctx, method, prepared)
}
