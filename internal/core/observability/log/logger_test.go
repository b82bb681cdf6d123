package log

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		" warn ":  LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"fatal":   LevelFatal,
		"bogus":   LevelInfo,
		"":        LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	logger := New(LevelWarn)
	require.Equal(t, LevelWarn, logger.GetLevel())

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())

	child := logger.With(String("component", "test"))
	assert.Equal(t, LevelDebug, child.GetLevel(), "child shares the parent level")
}

func TestToZapFields(t *testing.T) {
	fields := toZapFields(
		Bool("b", true),
		Duration("d", time.Second),
		Float64("f", 1.5),
		Int("i", 3),
		Int64("i64", 4),
		String("s", "x"),
		Uint64("u", 5),
		Error(errors.New("boom")),
		Any("a", []int{1}),
	)
	require.Len(t, fields, 9)
	assert.Equal(t, "error", fields[7].Key)
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	logger.Info("ignored", String("k", "v"))
	assert.NotNil(t, logger.With(Int("n", 1)))
}
