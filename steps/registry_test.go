package steps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AryanBarman/gorkflow"
)

func TestDefaultRegistry_DispatchesAllKinds(t *testing.T) {
	r := DefaultRegistry()

	instance, err := r.Create(gorkflow.Step{Kind: gorkflow.StepKindManual})
	require.NoError(t, err)
	assert.IsType(t, &Manual{}, instance)

	instance, err = r.Create(gorkflow.Step{Kind: gorkflow.StepKindStorage})
	require.NoError(t, err)
	assert.IsType(t, &Storage{}, instance)

	instance, err = r.Create(gorkflow.Step{Kind: gorkflow.StepKindAI})
	require.NoError(t, err)
	assert.IsType(t, &AI{}, instance)

	instance, err = r.Create(gorkflow.Step{Kind: gorkflow.StepKindLogic, Config: map[string]any{"handler": "weather_formatter"}})
	require.NoError(t, err)
	assert.IsType(t, &WeatherFormatter{}, instance)

	instance, err = r.Create(gorkflow.Step{Kind: gorkflow.StepKindLogic})
	require.NoError(t, err)
	assert.IsType(t, &DefaultTransform{}, instance)

	instance, err = r.Create(gorkflow.Step{Kind: gorkflow.StepKindAPI, Config: map[string]any{"handler": "http"}})
	require.NoError(t, err)
	assert.IsType(t, &HTTP{}, instance)

	instance, err = r.Create(gorkflow.Step{Kind: gorkflow.StepKindAPI})
	require.NoError(t, err)
	assert.IsType(t, &TransientFailure{}, instance)
}
