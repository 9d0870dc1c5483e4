package characters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clocktower/grimoire-server-go/internal/game/rules"
)

func TestEveryCatalogCharacterHasAnAbility(t *testing.T) {
	for _, def := range Catalog() {
		ability, err := NewAbility(def.ID)
		require.NoError(t, err, "missing ability for %s", def.ID)
		require.NotNil(t, ability)
		if def.NightOrder > 0 {
			assert.True(t, def.WakesAt(true) || def.WakesAt(false), "%s has a night order but no night hook", def.ID)
		}
		if def.WakesAt(true) || def.WakesAt(false) {
			assert.Positive(t, def.NightOrder, "%s wakes without a night order", def.ID)
		}
	}
}

func TestUnknownCharacter(t *testing.T) {
	_, err := NewAbility("gunslinger")
	assert.True(t, errors.Is(err, rules.ErrUnknownCharacter))

	_, err = Lookup("gunslinger")
	assert.True(t, errors.Is(err, rules.ErrUnknownCharacter))
}

func TestRegistryLookupIsScopedToScript(t *testing.T) {
	script, err := NewScript("tiny", Empath, Poisoner, Imp)
	require.NoError(t, err)
	registry, err := NewRegistry(script)
	require.NoError(t, err)

	def, err := registry.Lookup(Empath)
	require.NoError(t, err)
	assert.Equal(t, Townsfolk, def.Type)

	_, err = registry.Lookup(Monk)
	assert.True(t, errors.Is(err, rules.ErrUnknownCharacter), "monk exists but is not on the script")

	_, err = registry.Ability(Monk)
	assert.True(t, errors.Is(err, rules.ErrUnknownCharacter))
}

func TestNightOrderSortsByPriority(t *testing.T) {
	script, err := NewScript("tb", Empath, Monk, Imp, Poisoner, Washerwoman, Undertaker, Soldier)
	require.NoError(t, err)
	registry, err := NewRegistry(script)
	require.NoError(t, err)

	assert.Equal(t, []ID{Poisoner, Washerwoman, Empath}, registry.NightOrder(true))
	assert.Equal(t, []ID{Poisoner, Monk, Imp, Empath, Undertaker}, registry.NightOrder(false))
}

func TestNightOrderBreaksTiesLexically(t *testing.T) {
	script, err := NewScript("travellers", Thief, Bureaucrat, Imp)
	require.NoError(t, err)
	registry, err := NewRegistry(script)
	require.NoError(t, err)

	order := registry.NightOrder(false)
	require.Len(t, order, 3)
	assert.Equal(t, []ID{Bureaucrat, Thief, Imp}, order)
}

func TestWithHook(t *testing.T) {
	script, err := NewScript("day", Virgin, Saint, Butler, Imp)
	require.NoError(t, err)
	registry, err := NewRegistry(script)
	require.NoError(t, err)

	assert.Equal(t, []ID{Virgin}, registry.WithHook(rules.TriggerNomination))
	assert.Equal(t, []ID{Saint}, registry.WithHook(rules.TriggerExecution))
	assert.Equal(t, []ID{Butler}, registry.WithHook(rules.TriggerVoteCast))
}

func TestDefinitionHelpers(t *testing.T) {
	chef, err := Lookup(Chef)
	require.NoError(t, err)
	assert.True(t, chef.FirstNightOnly())

	empath, err := Lookup(Empath)
	require.NoError(t, err)
	assert.False(t, empath.FirstNightOnly())

	imp, err := Lookup(Imp)
	require.NoError(t, err)
	assert.True(t, imp.IsDemon())
	assert.False(t, imp.WakesAt(true))
	assert.True(t, imp.WakesAt(false))

	assert.Equal(t, Evil, Good.Opposite())
	_, err = ParseAlignment("neutral")
	assert.Error(t, err)
}
