package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/carview/internal/core/camera"
)

func TestPoll_Keys(t *testing.T) {
	s := NewState(DefaultConfig(), camera.ModeFollow)

	s.Apply(Event{Kind: KindKey, Key: "ArrowUp", Pressed: true})
	s.Apply(Event{Kind: KindKey, Key: "a", Pressed: true})

	c := s.Poll()
	assert.Equal(t, 1.0, c.Throttle)
	assert.Equal(t, 1.0, c.Steering)

	// held keys persist across polls
	c = s.Poll()
	assert.Equal(t, 1.0, c.Throttle)

	s.Apply(Event{Kind: KindKey, Key: "d", Pressed: true})
	c = s.Poll()
	assert.Zero(t, c.Steering, "left and right cancel")

	s.Apply(Event{Kind: KindKey, Key: "ArrowUp", Pressed: false})
	s.Apply(Event{Kind: KindKey, Key: "a", Pressed: false})
	c = s.Poll()
	assert.Zero(t, c.Throttle)
	assert.Equal(t, -1.0, c.Steering)

	s.Apply(Event{Kind: KindKey, Key: "q", Pressed: true})
	c = s.Poll()
	assert.Equal(t, -1.0, c.Steering, "unbound keys are ignored")
}

func TestPoll_KeyAliases(t *testing.T) {
	cases := map[string]Controls{
		"up":    {Throttle: 1},
		"Down":  {Throttle: -1},
		"left":  {Steering: 1},
		"RIGHT": {Steering: -1},
	}
	for key, want := range cases {
		t.Run(key, func(t *testing.T) {
			s := NewState(DefaultConfig(), camera.ModeFollow)
			s.Apply(Event{Kind: KindKey, Key: key, Pressed: true})
			c := s.Poll()
			assert.Equal(t, want.Throttle, c.Throttle)
			assert.Equal(t, want.Steering, c.Steering)

			s.Apply(Event{Kind: KindKey, Key: "arrow" + key, Pressed: false})
			c = s.Poll()
			assert.Zero(t, c.Throttle, "alias and arrow name are the same key")
			assert.Zero(t, c.Steering)
		})
	}
}

func TestPoll_DragIsPerTick(t *testing.T) {
	s := NewState(Config{DragSensitivity: 0.01, TouchSensitivity: 0.05}, camera.ModeFollow)

	s.Apply(Event{Kind: KindPointerDrag, DX: 20, DY: -30})
	s.Apply(Event{Kind: KindPointerDrag, DX: 10})

	c := s.Poll()
	assert.InDelta(t, -0.3, c.Steering, 1e-12)
	assert.InDelta(t, 0.3, c.Throttle, 1e-12)

	c = s.Poll()
	assert.Zero(t, c.Steering)
	assert.Zero(t, c.Throttle)

	s.Apply(Event{Kind: KindTouchDrag, DX: -100, DY: 100})
	c = s.Poll()
	assert.Equal(t, 1.0, c.Steering, "clamped")
	assert.Equal(t, -1.0, c.Throttle, "clamped")
}

func TestPoll_StrongerInputWins(t *testing.T) {
	s := NewState(DefaultConfig(), camera.ModeFollow)

	s.Apply(Event{Kind: KindAxisSteer, Value: -0.4})
	s.Apply(Event{Kind: KindKey, Key: "ArrowLeft", Pressed: true})
	assert.Equal(t, 1.0, s.Poll().Steering)

	s.Apply(Event{Kind: KindKey, Key: "ArrowLeft", Pressed: false})
	assert.Equal(t, -0.4, s.Poll().Steering)

	s.Apply(Event{Kind: KindAxisThrottle, Value: 3})
	assert.Equal(t, 1.0, s.Poll().Throttle)

	s.Release()
	c := s.Poll()
	assert.Zero(t, c.Steering)
	assert.Zero(t, c.Throttle)
}

func TestCameraModeEvents(t *testing.T) {
	s := NewState(DefaultConfig(), camera.ModeFollow)

	s.Apply(Event{Kind: KindToggleFollow})
	assert.Equal(t, camera.ModeFixed, s.Poll().Mode)

	s.Apply(Event{Kind: KindToggleFollow})
	assert.Equal(t, camera.ModeFollow, s.Mode())

	s.Apply(Event{Kind: KindSetMode, Mode: "fixed"})
	assert.Equal(t, camera.ModeFixed, s.Mode())

	s.Apply(Event{Kind: KindSetMode, Mode: "orbit"})
	assert.Equal(t, camera.ModeFixed, s.Mode(), "bad modes are ignored")
}

func TestEventValidate(t *testing.T) {
	require.NoError(t, Event{Kind: KindPointerDrag, DX: 1}.Validate())
	require.NoError(t, Event{Kind: KindSetMode, Mode: "follow"}.Validate())
	require.NoError(t, Event{Kind: KindKey, Key: "w"}.Validate())

	assert.ErrorIs(t, Event{Kind: "jump"}.Validate(), ErrInvalidEvent)
	assert.ErrorIs(t, Event{Kind: KindKey}.Validate(), ErrInvalidEvent)
	assert.ErrorIs(t, Event{Kind: KindSetMode, Mode: "orbit"}.Validate(), ErrInvalidEvent)
}
