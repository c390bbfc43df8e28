package persona

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRoster(t *testing.T) {
	r := Default()
	assert.Equal(t, []string{"ceo", "assistant", "cto", "cmo", "cfo", "pitch", "legal", "growth", "psych", "oracle", "artist", "social"}, r.IDs())
	assert.Equal(t, Operations, r.Default().ID)

	for _, p := range r.All() {
		assert.NotEmpty(t, p.Name, p.ID)
		assert.NotEmpty(t, p.Expertise, p.ID)
		assert.True(t, strings.HasPrefix(p.SystemTemplate(), strings.TrimSpace(Baseline)), p.ID)
	}

	for _, p := range r.Routable() {
		assert.NotEqual(t, Gatekeeper, p.ID)
	}
	ops, ok := r.Get(Operations)
	require.True(t, ok)
	assert.True(t, ops.CanCall)
	assert.True(t, ops.FullContext)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Default().Lookup("janitor")
	require.ErrorIs(t, err, ErrUnknownPersona)
	assert.Equal(t, "janitor", Default().Name("janitor"))
}

func TestNewRegistryRejectsDuplicatesAndMissingDefault(t *testing.T) {
	_, err := NewRegistry("a", Persona{ID: "a"}, Persona{ID: "a"})
	require.Error(t, err)
	_, err = NewRegistry("b", Persona{ID: "a"})
	require.ErrorIs(t, err, ErrUnknownPersona)
}

func TestRegistryHandsOutCopies(t *testing.T) {
	r := Default()
	want, ok := r.Get(Finance)
	require.True(t, ok)
	firstExpertise := want.Expertise[0]

	got, _ := r.Get(Finance)
	got.Expertise[0] = "hijacked"
	looked, err := r.Lookup(Finance)
	require.NoError(t, err)
	looked.RoutingHints[0] = "hijacked"

	all := r.All()
	strategyHint := all[0].RoutingHints[0]
	all[0].RoutingHints[0] = "hijacked"
	r.Routable()[0].Expertise[0] = "hijacked"
	r.Default().Expertise[0] = "hijacked"

	again, _ := r.Get(Finance)
	assert.Equal(t, firstExpertise, again.Expertise[0])
	assert.Equal(t, want.RoutingHints, again.RoutingHints)
	assert.Equal(t, strategyHint, r.All()[0].RoutingHints[0])
	assert.NotEqual(t, "hijacked", r.Routable()[0].Expertise[0])
	assert.NotEqual(t, "hijacked", r.Default().Expertise[0])
}

func TestNewRegistryCopiesInput(t *testing.T) {
	hints := []string{"ship"}
	r, err := NewRegistry("a", Persona{ID: "a", RoutingHints: hints})
	require.NoError(t, err)
	hints[0] = "changed"
	p, _ := r.Get("a")
	assert.Equal(t, []string{"ship"}, p.RoutingHints)
}
