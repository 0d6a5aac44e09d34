// Package validator judges whether a goal's metric has met its target.
// Validators are pure: the same target and context always produce the
// same result. Lookup by name happens only at the boundary; once a
// goal's validator is resolved, dispatch is through the interface.
package validator

import (
	"fmt"
	"sort"
	"sync"
)

// Context carries the runtime metrics a validator reads. MetricName
// names the field in Metrics the goal is measured against.
type Context struct {
	MetricName string
	Metrics    map[string]any
}

// Result is a validator's judgment. A missing metric is a failed
// result with an explanatory message, never an error.
type Result struct {
	Passed      bool   `json:"passed"`
	ActualValue any    `json:"actual_value"`
	Message     string `json:"message"`
}

// Validator is one named judgment strategy.
type Validator interface {
	Name() string
	Validate(target any, ctx Context) Result
}

// Registry maps validator names to implementations. Callers register
// validators at process start; goals reference them by name.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// NewDefaultRegistry returns a registry with the built-in validators
// already registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, v := range Builtins() {
		// names are distinct by construction
		_ = r.Register(v)
	}
	return r
}

func (r *Registry) Register(v Validator) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := v.Name()
	if _, exists := r.validators[name]; exists {
		return fmt.Errorf("validator already registered: %s", name)
	}
	r.validators[name] = v
	return nil
}

func (r *Registry) Get(name string) (Validator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.validators[name]
	return v, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.validators))
	for name := range r.validators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// missingMetric is the shared failure shape for a context that does
// not carry what the validator needs.
func missingMetric(ctx Context) (Result, bool) {
	if ctx.MetricName == "" {
		return Result{Passed: false, Message: "no metric_name in context"}, true
	}
	if _, ok := ctx.Metrics[ctx.MetricName]; !ok {
		return Result{Passed: false, Message: fmt.Sprintf("metric %s not found in context", ctx.MetricName)}, true
	}
	return Result{}, false
}

// asFloat widens the numeric types a JSON metrics map can carry.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
