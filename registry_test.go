package gorkflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	name        string
	configured  map[string]any
	configErr   error
}

func (f *fakeExecutor) Configure(config map[string]any) error {
	f.configured = config
	return f.configErr
}

func (f *fakeExecutor) Execute(input any, ctx *ExecutionContext) StepResult {
	return SuccessResult(f.name, StepMetadata{})
}

func newFakeFactory(name string) StepFactory {
	return func() StepExecutor { return &fakeExecutor{name: name} }
}

func buildTestRegistry() *Registry {
	return NewRegistry().
		WithManual(newFakeFactory("manual")).
		WithStorage(newFakeFactory("storage")).
		WithAI(newFakeFactory("ai")).
		WithLogicHandler("weather_formatter", newFakeFactory("weather")).
		WithLogicHandler("", newFakeFactory("default_logic")).
		WithAPIHandler("http", newFakeFactory("http")).
		WithAPIHandler("", newFakeFactory("default_api"))
}

func TestRegistry_Create_DispatchesByKind(t *testing.T) {
	r := buildTestRegistry()

	instance, err := r.Create(Step{Kind: StepKindManual})
	require.NoError(t, err)
	assert.Equal(t, "manual", instance.(*fakeExecutor).name)

	instance, err = r.Create(Step{Kind: StepKindStorage})
	require.NoError(t, err)
	assert.Equal(t, "storage", instance.(*fakeExecutor).name)

	instance, err = r.Create(Step{Kind: StepKindAI})
	require.NoError(t, err)
	assert.Equal(t, "ai", instance.(*fakeExecutor).name)
}

func TestRegistry_Create_LogicHandlerDispatch(t *testing.T) {
	r := buildTestRegistry()

	instance, err := r.Create(Step{Kind: StepKindLogic, Config: map[string]any{"handler": "weather_formatter"}})
	require.NoError(t, err)
	assert.Equal(t, "weather", instance.(*fakeExecutor).name)

	instance, err = r.Create(Step{Kind: StepKindLogic, Config: map[string]any{"handler": "nonexistent"}})
	require.NoError(t, err)
	assert.Equal(t, "default_logic", instance.(*fakeExecutor).name)

	instance, err = r.Create(Step{Kind: StepKindLogic})
	require.NoError(t, err)
	assert.Equal(t, "default_logic", instance.(*fakeExecutor).name)
}

func TestRegistry_Create_APIHandlerDispatch(t *testing.T) {
	r := buildTestRegistry()

	instance, err := r.Create(Step{Kind: StepKindAPI, Config: map[string]any{"handler": "http"}})
	require.NoError(t, err)
	assert.Equal(t, "http", instance.(*fakeExecutor).name)

	instance, err = r.Create(Step{Kind: StepKindAPI, Config: map[string]any{"handler": "missing"}})
	require.NoError(t, err)
	assert.Equal(t, "default_api", instance.(*fakeExecutor).name)
}

func TestRegistry_Create_UnknownKindIsNotRetryable(t *testing.T) {
	r := buildTestRegistry()

	_, err := r.Create(Step{Kind: StepKind("BOGUS")})
	require.Error(t, err)

	var notRetryable *NotRetryableError
	require.ErrorAs(t, err, &notRetryable)
}

func TestRegistry_Create_AttachesConfig(t *testing.T) {
	r := buildTestRegistry()
	config := map[string]any{"path": "./out.log"}

	instance, err := r.Create(Step{Kind: StepKindStorage, Config: config})
	require.NoError(t, err)
	assert.Equal(t, config, instance.(*fakeExecutor).configured)
}

func TestRegistry_Create_PropagatesConfigureError(t *testing.T) {
	r := NewRegistry().WithManual(func() StepExecutor {
		return &fakeExecutor{name: "manual", configErr: assert.AnError}
	})

	_, err := r.Create(Step{Kind: StepKindManual})
	require.ErrorIs(t, err, assert.AnError)
}
