package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bindingFixture(t *testing.T) (*Workflow, *Binding) {
	t.Helper()
	wf, err := Parse([]byte(`name: Scale
command: "kubectl scale deploy {{app}} --replicas={{count}}"
arguments:
  - name: app
    required: true
  - name: count
    argument_type: number
    default_value: "1"
    validation:
      min_value: 0
`))
	require.NoError(t, err)
	return wf, NewBinding(wf)
}

func TestBindingInitialStates(t *testing.T) {
	_, b := bindingFixture(t)

	state, _ := b.State("app")
	assert.Equal(t, StateEmpty, state)
	state, _ = b.State("count")
	assert.Equal(t, StateValid, state, "defaulted argument starts valid")
	assert.False(t, b.Submittable(), "required app is still empty")
}

func TestBindingSetValidates(t *testing.T) {
	_, b := bindingFixture(t)

	b.Set("app", "api")
	state, _ := b.State("app")
	assert.Equal(t, StateValid, state)
	assert.True(t, b.Submittable())

	b.Set("count", "-3")
	state, reason := b.State("count")
	assert.Equal(t, StateInvalid, state)
	assert.Contains(t, reason, "below minimum")
	assert.False(t, b.Submittable())

	b.Set("count", "5")
	state, reason = b.State("count")
	assert.Equal(t, StateValid, state)
	assert.Empty(t, reason)
	assert.True(t, b.Submittable())
}

func TestBindingClearRestoresDefault(t *testing.T) {
	_, b := bindingFixture(t)

	b.Set("count", "bogus")
	b.Clear("count")
	state, _ := b.State("count")
	assert.Equal(t, StateValid, state)
	assert.Equal(t, "1", b.Values()["count"])

	b.Set("app", "api")
	b.Clear("app")
	state, _ = b.State("app")
	assert.Equal(t, StateEmpty, state)
	_, present := b.Values()["app"]
	assert.False(t, present, "empty slots are omitted from Values")
}

func TestBindingValuesFeedResolve(t *testing.T) {
	wf, b := bindingFixture(t)

	b.Set("app", "api")
	require.True(t, b.Submittable())

	cmd, err := Resolve(wf, b.Values())
	require.NoError(t, err)
	assert.Equal(t, "kubectl scale deploy api --replicas=1", cmd)
}
