package sim

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/carview/internal/core/input"
)

func TestSessions_Lifecycle(t *testing.T) {
	r := NewSessions(DefaultConfig(), nil, nil)
	a := r.Create("coupe")
	b := r.Create("truck")
	require.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, r.Len())

	got, err := r.Get(a.ID())
	require.NoError(t, err)
	assert.Same(t, a, got)

	_, err = r.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	require.NoError(t, r.Remove(a.ID()))
	assert.ErrorIs(t, r.Remove(a.ID()), ErrSessionNotFound)
	assert.ErrorIs(t, a.Enqueue(input.Event{Kind: input.KindAxisSteer}), ErrSessionClosed)
	assert.Equal(t, 1, r.Len())
}

func TestSessions_Each(t *testing.T) {
	r := NewSessions(DefaultConfig(), nil, nil)
	for range 3 {
		r.Create("")
	}

	n := 0
	r.Each(func(*Session) bool { n++; return true })
	assert.Equal(t, 3, n)

	n = 0
	r.Each(func(*Session) bool { n++; return false })
	assert.Equal(t, 1, n)
}

func TestSessions_SharedBus(t *testing.T) {
	r := NewSessions(DefaultConfig(), nil, nil)
	a, b := r.Create(""), r.Create("")
	assert.NotNil(t, r.Bus())

	require.NoError(t, a.PublishEvent("marker", nil))
	require.NoError(t, b.PublishEvent("marker", nil))
	assert.Equal(t, uint64(2), r.Bus().Metrics().Published)
}
