package messaging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/shared"
)

func newSyncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryBusDeliversToTypeHandler(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var received []shared.Event
	err := bus.Subscribe(shared.EventJobCompleted, func(e shared.Event) error {
		received = append(received, e)
		return nil
	})
	require.NoError(t, err)

	event := shared.NewJobCompletedEvent("job-1", "students", 2, 2025, 120, 0, 0)
	require.NoError(t, bus.Publish(event))

	require.Len(t, received, 1)
	assert.Equal(t, "job-1", received[0].AggregateID())
}

func TestInMemoryBusSubscribeAll(t *testing.T) {
	bus := newSyncBus()
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewJobCompletedEvent("job-1", "students", 2, 2025, 120, 0, 0)))
	require.NoError(t, bus.Publish(shared.NewJobFailedEvent("job-2", "teachers", 2, 2025, 1, "snapshot missing")))

	assert.Equal(t, 2, count)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, float64(1), snap.HandlerSuccessRate)
}

func TestInMemoryBusClosedRejectsPublish(t *testing.T) {
	bus := newSyncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewJobCompletedEvent("job-1", "students", 2, 2025, 120, 0, 0))
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryBusAsyncDelivery(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
		EnableMetrics:  true,
	})

	var mu sync.Mutex
	var count int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewJobCompletedEvent("job-1", "students", 2, 2025, 120, 0, 0)))
	}

	// Close waits for all in-flight handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}
