package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewMemoryBus()

	var mu sync.Mutex
	var got []string
	record := func(tag string) func(Frame) {
		return func(f Frame) {
			mu.Lock()
			got = append(got, tag+":"+string(f.Kind))
			mu.Unlock()
		}
	}

	cancel1, err := bus.Subscribe(record("s1"))
	require.NoError(t, err)
	defer cancel1()
	cancel2, err := bus.Subscribe(record("s2"))
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, bus.Publish(context.Background(), Frame{Kind: KindLeaderPing, Sender: "p"}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryBus_PreservesSenderOrder(t *testing.T) {
	bus := NewMemoryBus()

	var mu sync.Mutex
	var topics []string
	cancel, err := bus.Subscribe(func(f Frame) {
		mu.Lock()
		topics = append(topics, f.Topic)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer cancel()

	want := []string{"t1", "t2", "t3", "t4"}
	for _, topic := range want {
		require.NoError(t, bus.Publish(context.Background(), Frame{Kind: KindSubscribe, Topic: topic}))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(topics) == len(want)
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, topics)
}

func TestMemoryBus_CancelStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()

	var mu sync.Mutex
	count := 0
	cancel, err := bus.Subscribe(func(Frame) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	require.NoError(t, err)

	cancel()
	cancel() // idempotent

	require.NoError(t, bus.Publish(context.Background(), Frame{Kind: KindLeaderPing}))
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}
