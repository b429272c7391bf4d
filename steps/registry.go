package steps

import "github.com/AryanBarman/gorkflow"

// DefaultRegistry wires every built-in StepExecutor into a fresh
// gorkflow.Registry, matching app/steps/registry.py's create_step dispatch
// table: MANUAL -> Manual, LOGIC["weather_formatter"] -> WeatherFormatter,
// LOGIC default -> DefaultTransform, STORAGE -> Storage, AI -> AI,
// API["http"] -> HTTP, API default -> TransientFailure.
func DefaultRegistry() *gorkflow.Registry {
	return gorkflow.NewRegistry().
		WithManual(NewManual).
		WithStorage(NewStorage).
		WithAI(NewAI).
		WithLogicHandler("weather_formatter", NewWeatherFormatter).
		WithLogicHandler("", NewDefaultTransform).
		WithAPIHandler("http", NewHTTP).
		WithAPIHandler("", NewTransientFailureAPI)
}
