package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlarmClockFiresInDeadlineOrder(t *testing.T) {
	clock := NewAlarmClock(nil)
	clock.Start(context.Background())
	defer clock.Stop()

	m := NewMailbox(16, nil)
	m.Start(context.Background())
	defer m.Stop()

	results := make(chan int, 3)
	now := time.Now()
	clock.Schedule(now.Add(30*time.Millisecond), m, func(ctx context.Context) { results <- 3 })
	clock.Schedule(now.Add(10*time.Millisecond), m, func(ctx context.Context) { results <- 1 })
	clock.Schedule(now.Add(20*time.Millisecond), m, func(ctx context.Context) { results <- 2 })

	var order []int
	for i := 0; i < 3; i++ {
		select {
		case v := <-results:
			order = append(order, v)
		case <-time.After(2 * time.Second):
			t.Fatal("timers did not fire")
		}
	}
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestAlarmClockCancelPreventsFiring(t *testing.T) {
	clock := NewAlarmClock(nil)
	clock.Start(context.Background())
	defer clock.Stop()

	m := NewMailbox(16, nil)
	m.Start(context.Background())
	defer m.Stop()

	fired := make(chan struct{}, 1)
	timer := clock.Schedule(time.Now().Add(20*time.Millisecond), m, func(ctx context.Context) {
		fired <- struct{}{}
	})
	timer.Cancel()

	select {
	case <-fired:
		t.Fatal("canceled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAlarmClockPending(t *testing.T) {
	clock := NewAlarmClock(nil)
	clock.Start(context.Background())
	defer clock.Stop()

	m := NewMailbox(16, nil)
	m.Start(context.Background())
	defer m.Stop()

	clock.Schedule(time.Now().Add(time.Hour), m, func(ctx context.Context) {})
	require.Eventually(t, func() bool { return clock.Pending() == 1 }, time.Second, 10*time.Millisecond)
}
