package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/cschleiden/go-orchestrations/internal/args"
	"github.com/cschleiden/go-orchestrations/internal/fn"
)

// Orchestrator is a function with the signature func(orchestration.Context, args...) (T, error) or
// func(orchestration.Context, args...) error.
type Orchestrator = any

// Activity is a function with the signature func(context.Context, args...) (T, error), or a pointer to a
// struct whose exported methods are activities.
type Activity = any

// Registry maps names to orchestrators and activities. Names are what is recorded in history, so the same
// name has to resolve to the same code on every worker.
type Registry struct {
	sync.Mutex

	orchestratorMap map[string]Orchestrator
	activityMap     map[string]any
}

// New creates a new registry instance.
func New() *Registry {
	return &Registry{
		orchestratorMap: make(map[string]Orchestrator),
		activityMap:     make(map[string]any),
	}
}

type registerConfig struct {
	Name string
}

func (r *Registry) RegisterOrchestrator(orchestrator Orchestrator, opts ...RegisterOption) error {
	cfg := registerOptions(opts).applyRegisterOptions(registerConfig{})

	oType := reflect.TypeOf(orchestrator)
	if oType == nil || oType.Kind() != reflect.Func {
		return &ErrInvalidOrchestrator{"orchestrator is not a function"}
	}

	name := cfg.Name
	if name == "" {
		name = fn.Name(orchestrator)
	}

	if oType.NumIn() == 0 {
		return &ErrInvalidOrchestrator{"orchestrator does not accept context parameter"}
	}

	if !args.IsOwnContext(oType.In(0)) {
		return &ErrInvalidOrchestrator{"orchestrator does not accept orchestration.Context as first parameter"}
	}

	if err := checkResults(oType); err != "" {
		return &ErrInvalidOrchestrator{"orchestrator " + err}
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.orchestratorMap[name]; ok {
		return &ErrOrchestratorAlreadyRegistered{fmt.Sprintf("orchestrator with name %q already registered", name)}
	}
	r.orchestratorMap[name] = orchestrator

	return nil
}

func (r *Registry) RegisterActivity(activity Activity, opts ...RegisterOption) error {
	cfg := registerOptions(opts).applyRegisterOptions(registerConfig{})

	t := reflect.TypeOf(activity)
	if t == nil {
		return &ErrInvalidActivity{"activity is nil"}
	}

	// Activities on struct
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return r.registerActivitiesFromStruct(activity)
	}

	if err := checkActivity(t); err != nil {
		return err
	}

	name := cfg.Name
	if name == "" {
		name = fn.Name(activity)
	}

	r.Lock()
	defer r.Unlock()

	if _, ok := r.activityMap[name]; ok {
		return &ErrActivityAlreadyRegistered{fmt.Sprintf("activity with name %q already registered", name)}
	}
	r.activityMap[name] = activity

	return nil
}

func (r *Registry) registerActivitiesFromStruct(a any) error {
	// Enumerate functions defined on a
	v := reflect.ValueOf(a)
	t := v.Type()

	r.Lock()
	defer r.Unlock()

	activities := make(map[string]any)

	for i := 0; i < v.NumMethod(); i++ {
		mv := v.Method(i)
		mt := t.Method(i)

		// Ignore private methods
		if mt.PkgPath != "" {
			continue
		}

		if err := checkActivity(mv.Type()); err != nil {
			return fmt.Errorf("method %s: %w", mt.Name, err)
		}

		if _, ok := r.activityMap[mt.Name]; ok {
			return &ErrActivityAlreadyRegistered{fmt.Sprintf("activity with name %q already registered", mt.Name)}
		}

		activities[mt.Name] = mv.Interface()
	}

	for name, activity := range activities {
		r.activityMap[name] = activity
	}

	return nil
}

func checkActivity(actType reflect.Type) error {
	if actType.Kind() != reflect.Func {
		return &ErrInvalidActivity{"activity not a func"}
	}

	if err := checkResults(actType); err != "" {
		return &ErrInvalidActivity{"activity " + err}
	}

	return nil
}

func checkResults(t reflect.Type) string {
	if t.NumOut() == 0 {
		return "must return error"
	}

	if t.NumOut() > 2 {
		return "must return at most two values"
	}

	errType := reflect.TypeOf((*error)(nil)).Elem()
	if !t.Out(t.NumOut() - 1).Implements(errType) {
		return "must return error as last return value"
	}

	return ""
}

func (r *Registry) GetOrchestrator(name string) (Orchestrator, error) {
	r.Lock()
	defer r.Unlock()

	if orchestrator, ok := r.orchestratorMap[name]; ok {
		return orchestrator, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrOrchestratorNotFound, name)
}

func (r *Registry) GetActivity(name string) (any, error) {
	r.Lock()
	defer r.Unlock()

	if activity, ok := r.activityMap[name]; ok {
		return activity, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrActivityNotFound, name)
}

// Orchestrators returns the names of all registered orchestrators, sorted.
func (r *Registry) Orchestrators() []string {
	r.Lock()
	defer r.Unlock()

	return sortedKeys(r.orchestratorMap)
}

// Activities returns the names of all registered activities, sorted.
func (r *Registry) Activities() []string {
	r.Lock()
	defer r.Unlock()

	return sortedKeys(r.activityMap)
}

func sortedKeys(m map[string]any) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
