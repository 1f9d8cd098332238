package grablib

import (
	"log"
	"sync"
	"time"
)

const (
	// DefMaxConcurrent is the default number of simultaneously active
	// downloads.
	DefMaxConcurrent = 3

	queueSweepInterval = 5 * time.Second
)

// Queue admits downloads into a bounded active set, holding the rest in a
// FIFO pending list. An id is never in both sets. Admission happens when
// an id is enqueued, when an active slot frees up, and on a periodic
// sweep that catches any missed wakeup.
type Queue struct {
	mu      sync.Mutex
	pending []string
	active  map[string]struct{}
	max     int

	onStart func(id string)
	l       *log.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewQueue creates an admission queue dispatching admitted ids to onStart.
// onStart is always invoked outside the queue lock, so it may call back
// into the queue. A maxConcurrent below 1 falls back to DefMaxConcurrent.
func NewQueue(maxConcurrent int, onStart func(id string), l *log.Logger) *Queue {
	if maxConcurrent < 1 {
		maxConcurrent = DefMaxConcurrent
	}
	q := &Queue{
		active:  make(map[string]struct{}),
		max:     maxConcurrent,
		onStart: onStart,
		l:       l,
		stop:    make(chan struct{}),
	}
	go q.sweep()
	return q
}

func (q *Queue) sweep() {
	t := time.NewTicker(queueSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-t.C:
			q.RunNext()
		}
	}
}

// Enqueue appends id to the pending list unless it is already pending or
// active, then attempts admission.
func (q *Queue) Enqueue(id string) {
	q.mu.Lock()
	if _, ok := q.active[id]; ok {
		q.mu.Unlock()
		return
	}
	for _, p := range q.pending {
		if p == id {
			q.mu.Unlock()
			return
		}
	}
	q.pending = append(q.pending, id)
	q.mu.Unlock()
	q.RunNext()
}

// RunNext admits pending ids in FIFO order until the active set is full
// or the pending list is empty.
func (q *Queue) RunNext() {
	q.mu.Lock()
	var admitted []string
	for len(q.active) < q.max && len(q.pending) > 0 {
		id := q.pending[0]
		q.pending = q.pending[1:]
		q.active[id] = struct{}{}
		admitted = append(admitted, id)
	}
	q.mu.Unlock()
	for _, id := range admitted {
		if q.l != nil {
			q.l.Printf("queue: admitting download %s", id)
		}
		q.onStart(id)
	}
}

// Done frees id's active slot and admits the next pending download.
func (q *Queue) Done(id string) {
	q.mu.Lock()
	_, ok := q.active[id]
	delete(q.active, id)
	q.mu.Unlock()
	if ok {
		q.RunNext()
	}
}

// Remove withdraws id from the queue entirely, whichever set holds it.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	_, wasActive := q.active[id]
	delete(q.active, id)
	for i, p := range q.pending {
		if p == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			break
		}
	}
	q.mu.Unlock()
	if wasActive {
		q.RunNext()
	}
}

// SetMaxConcurrent changes the active-set bound. Raising it admits
// waiting downloads immediately; lowering it never interrupts active
// ones, the bound applies as slots free up. Values below 1 return
// ErrInvalidConcurrency.
func (q *Queue) SetMaxConcurrent(n int) error {
	if n < 1 {
		return ErrInvalidConcurrency
	}
	q.mu.Lock()
	q.max = n
	q.mu.Unlock()
	q.RunNext()
	return nil
}

// MaxConcurrent returns the current active-set bound.
func (q *Queue) MaxConcurrent() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.max
}

// Counts reports the pending and active set sizes.
func (q *Queue) Counts() (pending, active int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending), len(q.active)
}

// Close stops the periodic sweep.
func (q *Queue) Close() {
	q.stopOnce.Do(func() { close(q.stop) })
}
