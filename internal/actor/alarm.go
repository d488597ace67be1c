package actor

import (
	"container/heap"
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Timer is one scheduled callback: fire callback on the owning actor's
// mailbox no earlier than deadline (spec §4.2).
type Timer struct {
	Deadline time.Time
	Mailbox  *Mailbox
	Callback Task

	salt     uint64
	canceled bool
	index    int // heap.Interface bookkeeping
}

// Cancel marks the timer canceled so its callback never runs. The entry
// stays in the heap until its deadline passes and it is dropped there.
// Idempotent.
func (t *Timer) Cancel() {
	t.canceled = true
}

// alarmHeap orders pending timers by (deadline, salt), the salt breaking
// ties so the set stays totally ordered (spec §4.2).
type alarmHeap []*Timer

func (h alarmHeap) Len() int { return len(h) }
func (h alarmHeap) Less(i, j int) bool {
	if !h[i].Deadline.Equal(h[j].Deadline) {
		return h[i].Deadline.Before(h[j].Deadline)
	}
	return h[i].salt < h[j].salt
}
func (h alarmHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *alarmHeap) Push(x any) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// jitterRange bounds the re-insertion delay applied when a due timer's
// target mailbox is full (spec §4.2: "100-1000 µs uniform").
const (
	jitterMin = 100 * time.Microsecond
	jitterMax = 1000 * time.Microsecond
)

// AlarmClock runs a background loop that wakes at the earliest pending
// deadline (or on an explicit Wake signal) and moves due callbacks onto
// their owning actor's mailbox.
type AlarmClock struct {
	mu     sync.Mutex
	heap   alarmHeap
	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
	rng    *rand.Rand
}

// NewAlarmClock creates an idle AlarmClock; call Start to run its loop.
func NewAlarmClock(logger *slog.Logger) *AlarmClock {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlarmClock{
		wake:   make(chan struct{}, 1),
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Schedule adds a timer and returns it so the caller may Cancel it.
func (a *AlarmClock) Schedule(deadline time.Time, mailbox *Mailbox, cb Task) *Timer {
	t := &Timer{Deadline: deadline, Mailbox: mailbox, Callback: cb, salt: a.nextSalt()}
	a.mu.Lock()
	heap.Push(&a.heap, t)
	a.mu.Unlock()
	a.signal()
	return t
}

func (a *AlarmClock) nextSalt() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Uint64()
}

func (a *AlarmClock) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Start launches the background sweep loop.
func (a *AlarmClock) Start(ctx context.Context) {
	if a.done != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		for {
			wait := a.nextWait()
			var timerC <-chan time.Time
			if wait != nil {
				timer := time.NewTimer(*wait)
				timerC = timer.C
				defer timer.Stop()
			}
			select {
			case <-ctx.Done():
				return
			case <-a.wake:
			case <-timerC:
			}
			a.sweep()
		}
	}()
}

// nextWait returns the duration until the earliest pending deadline, or
// nil if the heap is empty (wait indefinitely for a signal).
func (a *AlarmClock) nextWait() *time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.heap) == 0 {
		return nil
	}
	d := time.Until(a.heap[0].Deadline)
	if d < 0 {
		d = 0
	}
	return &d
}

// sweep moves every due, non-canceled timer onto its actor's mailbox.
// A timer whose target mailbox is full is re-inserted with a small
// jittered delay and a warning is logged (spec §4.2 overload handling).
func (a *AlarmClock) sweep() {
	now := time.Now()
	for {
		a.mu.Lock()
		if len(a.heap) == 0 || a.heap[0].Deadline.After(now) {
			a.mu.Unlock()
			return
		}
		t := heap.Pop(&a.heap).(*Timer)
		a.mu.Unlock()

		if t.canceled {
			continue
		}
		switch err := t.Mailbox.TryPushBack(t.Callback); err.(type) {
		case nil:
		case ErrMailboxFull:
			a.logger.Warn("actor: target mailbox full, re-inserting timer with jitter")
			delay := a.jitter()
			t.Deadline = now.Add(delay)
			a.mu.Lock()
			heap.Push(&a.heap, t)
			a.mu.Unlock()
		default:
			// mailbox closed; drop the callback
		}
	}
}

// Stop halts the sweep loop.
func (a *AlarmClock) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.done != nil {
		<-a.done
	}
}

// jitter returns a uniform random duration in [jitterMin, jitterMax).
func (a *AlarmClock) jitter() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	span := int64(jitterMax - jitterMin)
	return jitterMin + time.Duration(a.rng.Int63n(span))
}

// Pending reports the number of timers currently scheduled, for the
// debug surface (spec §4.8).
func (a *AlarmClock) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.heap)
}

// EarliestDeadline reports the soonest pending timer's deadline, for the
// debug surface (spec §4.8). ok is false if nothing is scheduled.
func (a *AlarmClock) EarliestDeadline() (deadline time.Time, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.heap) == 0 {
		return time.Time{}, false
	}
	return a.heap[0].Deadline, true
}
