// Package sched provides the cooperative, time-ordered task scheduler that
// the event loop drains between socket dispatches.
//
// Tasks run on the goroutine that calls Run. Scheduling and cancellation are
// safe from any goroutine, so other goroutines can hand work to the loop.
package sched

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"
)

// Task is a unit of deferred work.
type Task func()

// Handle identifies a scheduled task. The zero Handle is never issued.
type Handle uint64

// entry is one pending task.
type entry struct {
	due   time.Time
	seq   uint64
	task  Task
	index int
}

// taskHeap is a min-heap ordered by due time, then enqueue order.
type taskHeap []*entry

func (h taskHeap) Len() int { return len(h) }
func (h taskHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Scheduler is a min-heap of pending tasks.
type Scheduler struct {
	mu sync.Mutex

	tasks taskHeap
	byID  map[Handle]*entry
	seq   uint64

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used to report recovered task panics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		byID: make(map[Handle]*entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule runs task after delay. A non-positive delay makes the task due
// at the next Run. Returns 0 for a nil task.
func (s *Scheduler) Schedule(delay time.Duration, task Task) Handle {
	return s.At(s.now().Add(delay), task)
}

// At runs task once the clock reaches t. Returns 0 for a nil task.
func (s *Scheduler) At(t time.Time, task Task) Handle {
	if task == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	e := &entry{due: t, seq: s.seq, task: task}
	heap.Push(&s.tasks, e)
	h := Handle(s.seq)
	s.byID[h] = e
	return h
}

// Cancel removes a pending task. Returns false if the task already ran,
// was cancelled, or never existed.
func (s *Scheduler) Cancel(h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byID[h]
	if !ok {
		return false
	}
	delete(s.byID, h)
	heap.Remove(&s.tasks, e.index)
	return true
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Clear drops every pending task.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = nil
	clear(s.byID)
}

// TimeToNext returns the time until the earliest task is due, clamped at
// zero for overdue tasks. The bool is false when nothing is pending.
func (s *Scheduler) TimeToNext() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return 0, false
	}
	d := s.tasks[0].due.Sub(s.now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// WaitTime returns how long the loop may block: the time to the next task
// capped by maxWait, or maxWait when nothing is pending. The result lies in
// [0, maxWait]; a negative maxWait is treated as zero.
func (s *Scheduler) WaitTime(maxWait time.Duration) time.Duration {
	if maxWait < 0 {
		maxWait = 0
	}
	d, ok := s.TimeToNext()
	if !ok || d > maxWait {
		return maxWait
	}
	return d
}

// WaitTimeMS is WaitTime in whole milliseconds. A positive sub-millisecond
// remainder rounds up so the caller never spins on a zero timeout while a
// task is still in the future.
func (s *Scheduler) WaitTimeMS(maxMS int) int {
	if maxMS < 0 {
		maxMS = 0
	}
	d := s.WaitTime(time.Duration(maxMS) * time.Millisecond)
	ms := int(d / time.Millisecond)
	if d%time.Millisecond > 0 {
		ms++
	}
	return min(ms, maxMS)
}

// Run executes every task that was due and pending when Run was called, in
// due order. Tasks scheduled by a running task wait for the next Run. A
// panicking task is recovered and logged. Returns the number of tasks run.
func (s *Scheduler) Run() int {
	s.mu.Lock()
	now := s.now()
	limit := s.seq
	s.mu.Unlock()

	ran := 0
	for {
		task, ok := s.popDue(now, limit)
		if !ok {
			return ran
		}
		s.runTask(task)
		ran++
	}
}

func (s *Scheduler) popDue(now time.Time, limit uint64) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tasks) == 0 {
		return nil, false
	}
	e := s.tasks[0]
	if e.due.After(now) {
		return nil, false
	}
	if e.seq > limit {
		// Queued during this Run at an already-due time. Anything behind it
		// may still be eligible, so skip without popping.
		return s.popDueSlow(now, limit)
	}
	heap.Pop(&s.tasks)
	delete(s.byID, Handle(e.seq))
	return e.task, true
}

// popDueSlow finds the earliest eligible task when the heap head was
// enqueued after Run started.
func (s *Scheduler) popDueSlow(now time.Time, limit uint64) (Task, bool) {
	var best *entry
	for _, e := range s.tasks {
		if e.seq > limit || e.due.After(now) {
			continue
		}
		if best == nil || s.tasks.Less(e.index, best.index) {
			best = e
		}
	}
	if best == nil {
		return nil, false
	}
	heap.Remove(&s.tasks, best.index)
	delete(s.byID, Handle(best.seq))
	return best.task, true
}

func (s *Scheduler) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil && s.logger != nil {
			s.logger.Error("scheduled task panicked", "panic", r)
		}
	}()
	task()
}
