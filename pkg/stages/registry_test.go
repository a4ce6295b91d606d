package stages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/trellis/pkg/models"
)

func testRegistry(t *testing.T) *Registry {
	r, err := NewRegistry(
		[]string{"contact", "engaged", "visit", "proposal", "reservation"},
		[]string{"won", "lost"},
	)
	require.NoError(t, err)
	return r
}

func TestNewRegistry_Validation(t *testing.T) {
	t.Run("RequiresActiveStages", func(t *testing.T) {
		_, err := NewRegistry(nil, []string{"won"})
		assert.Error(t, err)
	})

	t.Run("RequiresTerminalStages", func(t *testing.T) {
		_, err := NewRegistry([]string{"contact"}, nil)
		assert.Error(t, err)
	})

	t.Run("RejectsDuplicates", func(t *testing.T) {
		_, err := NewRegistry([]string{"contact", "Contact"}, []string{"won"})
		assert.Error(t, err)
	})

	t.Run("RejectsEmptyNames", func(t *testing.T) {
		_, err := NewRegistry([]string{"contact", "  "}, []string{"won"})
		assert.Error(t, err)
	})

	t.Run("NormalizesNames", func(t *testing.T) {
		r, err := NewRegistry([]string{" Contact "}, []string{"WON"})
		require.NoError(t, err)
		assert.True(t, r.Contains("contact"))
		assert.True(t, r.Contains("won"))
	})
}

func TestRegistry_Order(t *testing.T) {
	r := testRegistry(t)

	for i, stage := range []models.Stage{"contact", "engaged", "visit", "proposal", "reservation", "won", "lost"} {
		idx, err := r.Index(stage)
		require.NoError(t, err)
		assert.Equal(t, i, idx)
	}

	_, err := r.Index("negotiation")
	assert.ErrorIs(t, err, ErrUnknownStage)

	assert.Equal(t, models.Stage("contact"), r.First())
	assert.Equal(t, models.Stage("reservation"), r.LastActive())
	assert.Len(t, r.All(), 7)
}

func TestRegistry_Successor(t *testing.T) {
	r := testRegistry(t)

	next, ok := r.Successor("contact")
	require.True(t, ok)
	assert.Equal(t, models.Stage("engaged"), next)

	t.Run("LastActiveHasNoSuccessor", func(t *testing.T) {
		_, ok := r.Successor("reservation")
		assert.False(t, ok)
	})

	t.Run("TerminalsHaveNoSuccessor", func(t *testing.T) {
		_, ok := r.Successor("won")
		assert.False(t, ok)
		_, ok = r.Successor("lost")
		assert.False(t, ok)
	})

	t.Run("UnknownStage", func(t *testing.T) {
		_, ok := r.Successor("negotiation")
		assert.False(t, ok)
	})
}

func TestRegistry_Terminals(t *testing.T) {
	r := testRegistry(t)

	assert.True(t, r.IsTerminal("won"))
	assert.True(t, r.IsTerminal("lost"))
	assert.False(t, r.IsTerminal("contact"))

	assert.Equal(t, []models.Stage{"won", "lost"}, r.Terminals())
	assert.Equal(t, []models.Stage{"contact", "engaged", "visit", "proposal", "reservation"}, r.Active())
}
