package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	mu             sync.Mutex
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := New()
	var got Event
	_, err := b.Subscribe("vehicle.reset", func(e Event) error {
		got = e
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, b.Publish(NewEvent("vehicle.reset", "session", 123)))
	require.NotNil(t, got)
	assert.Equal(t, "session", got.Source())
	assert.Equal(t, 123, got.Data())
	assert.False(t, got.Timestamp().IsZero())
}

func TestDeliveryOrder(t *testing.T) {
	b := New()
	var order []int
	for i := range 5 {
		_, err := b.Subscribe("x", func(Event) error {
			order = append(order, i)
			return nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, b.Publish(NewEvent("x", "", nil)))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestHandlerErrorsAreJoined(t *testing.T) {
	b := New()
	errA, errB := errors.New("a"), errors.New("b")
	_, _ = b.Subscribe("x", func(Event) error { return errA })
	_, _ = b.Subscribe("x", func(Event) error { return nil })
	_, _ = b.Subscribe("x", func(Event) error { return errB })

	err := b.Publish(NewEvent("x", "", nil))
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, uint64(1), b.Metrics().Errors)
}

func TestPublishAsyncReturnsErrorChannel(t *testing.T) {
	b := New()
	handlerErr := errors.New("fail")
	_, err := b.Subscribe("x", func(Event) error { return handlerErr })
	require.NoError(t, err)

	select {
	case e := <-b.PublishAsync(NewEvent("x", "src", nil)):
		assert.ErrorIs(t, e, handlerErr)
	case <-time.After(time.Second):
		t.Fatal("async publish did not complete")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	sub, err := b.Subscribe("x", func(Event) error { calls++; return nil })
	require.NoError(t, err)
	require.True(t, sub.IsActive())
	assert.NotEmpty(t, sub.ID())
	assert.Equal(t, "x", sub.EventType())
	assert.Equal(t, uint64(1), b.Metrics().SubscribersActive)

	require.NoError(t, b.Unsubscribe(sub))
	require.NoError(t, sub.Cancel())
	require.NoError(t, b.Unsubscribe(nil))
	assert.False(t, sub.IsActive())
	assert.Equal(t, uint64(0), b.Metrics().SubscribersActive)

	require.NoError(t, b.Publish(NewEvent("x", "", nil)))
	assert.Zero(t, calls)
}

func TestSubscribeNilHandler(t *testing.T) {
	_, err := New().Subscribe("x", nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestObserverAndMetrics(t *testing.T) {
	b := New()
	obs := &testObserver{}
	b.AddObserver(obs)

	_, _ = b.Subscribe("x", func(Event) error { return nil })
	_, _ = b.Subscribe("x", func(Event) error { return errors.New("boom") })

	err := b.Publish(NewEvent("x", "", nil))
	require.Error(t, err)

	m := b.Metrics()
	assert.Equal(t, uint64(1), m.Published)
	assert.Equal(t, uint64(2), m.DeliveredHandlers)
	assert.Equal(t, uint64(1), m.Errors)

	obs.mu.Lock()
	assert.Equal(t, 2, obs.deliveredCount)
	assert.Error(t, obs.lastErr)
	obs.mu.Unlock()

	b.RemoveObserver(obs)
	require.NoError(t, b.Publish(NewEvent("y", "", nil)))
	obs.mu.Lock()
	assert.Equal(t, 2, obs.deliveredCount)
	obs.mu.Unlock()
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	var mu sync.Mutex
	count := 0
	_, _ = b.Subscribe("x", func(Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = b.Publish(NewEvent("x", "", nil))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, count)
}
