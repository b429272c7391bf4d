package gorkflow

// StepFactory constructs a fresh, unconfigured StepExecutor instance.
type StepFactory func() StepExecutor

// Registry is the single boundary for step instantiation (spec §4.3),
// grounded 1:1 on the Python original's app/steps/registry.py. New step
// kinds/handlers register a factory instead of the registry switching on a
// hardcoded type list, so the built-in steps package and any caller-supplied
// executor share the same resolution path.
type Registry struct {
	manual  StepFactory
	logic   map[string]StepFactory
	storage StepFactory
	ai      StepFactory
	api     map[string]StepFactory

	defaultLogic StepFactory // unknown LOGIC handler fallback
	defaultAPI   StepFactory // unknown API handler fallback
}

// NewRegistry builds an empty Registry. Use the With* methods to register
// factories before passing it to the engine.
func NewRegistry() *Registry {
	return &Registry{
		logic: make(map[string]StepFactory),
		api:   make(map[string]StepFactory),
	}
}

func (r *Registry) WithManual(f StepFactory) *Registry { r.manual = f; return r }
func (r *Registry) WithStorage(f StepFactory) *Registry { r.storage = f; return r }
func (r *Registry) WithAI(f StepFactory) *Registry      { r.ai = f; return r }

// WithLogicHandler registers a LOGIC step factory under a handler name.
// handler == "" registers the default-transform fallback used for unknown
// handlers (spec §4.3).
func (r *Registry) WithLogicHandler(handler string, f StepFactory) *Registry {
	if handler == "" {
		r.defaultLogic = f
		return r
	}
	r.logic[handler] = f
	return r
}

// WithAPIHandler registers an API step factory under a handler name.
// handler == "" registers the transient-failure fallback used for unknown
// handlers (spec §4.3).
func (r *Registry) WithAPIHandler(handler string, f StepFactory) *Registry {
	if handler == "" {
		r.defaultAPI = f
		return r
	}
	r.api[handler] = f
	return r
}

// Create instantiates the StepExecutor for a Step declaration and attaches
// its Config (spec §4.3: "the registry ensures the step's declared
// configuration is attached to the instance").
func (r *Registry) Create(step Step) (StepExecutor, error) {
	var instance StepExecutor

	switch step.Kind {
	case StepKindManual:
		instance = r.manual()
	case StepKindLogic:
		if f, ok := r.logic[step.Handler()]; ok {
			instance = f()
		} else {
			instance = r.defaultLogic()
		}
	case StepKindStorage:
		instance = r.storage()
	case StepKindAI:
		instance = r.ai()
	case StepKindAPI:
		if f, ok := r.api[step.Handler()]; ok {
			instance = f()
		} else {
			instance = r.defaultAPI()
		}
	default:
		return nil, NewNotRetryableError("unknown step kind: " + string(step.Kind))
	}

	if err := instance.Configure(step.Config); err != nil {
		return nil, err
	}
	return instance, nil
}
