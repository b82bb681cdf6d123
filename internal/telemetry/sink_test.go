package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/carview/internal/sim"
)

type captureSink struct {
	seqs   []uint64
	err    error
	closed bool
}

func (c *captureSink) Record(_ context.Context, _ string, f sim.Frame) error {
	c.seqs = append(c.seqs, f.Seq)
	return c.err
}

func (c *captureSink) Close() error {
	c.closed = true
	return c.err
}

func TestMulti(t *testing.T) {
	a := &captureSink{}
	boom := errors.New("boom")
	b := &captureSink{err: boom}
	m := Multi(a, b)

	err := m.Record(context.Background(), "s", sim.Frame{Seq: 7})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []uint64{7}, a.seqs, "a failing sink does not starve the others")
	assert.Equal(t, []uint64{7}, b.seqs)

	assert.ErrorIs(t, m.Close(), boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}

func TestMulti_Degenerate(t *testing.T) {
	assert.NoError(t, Multi().Record(context.Background(), "s", sim.Frame{}))
	a := &captureSink{}
	assert.Same(t, a, Multi(a))
}

func TestEvery(t *testing.T) {
	c := &captureSink{}
	s := Every(3, c)
	for seq := uint64(1); seq <= 7; seq++ {
		require.NoError(t, s.Record(context.Background(), "s", sim.Frame{Seq: seq, Reset: seq == 5}))
	}
	assert.Equal(t, []uint64{3, 5, 6}, c.seqs)

	assert.Same(t, c, Every(1, c))
	require.NoError(t, s.Close())
	assert.True(t, c.closed)
}
