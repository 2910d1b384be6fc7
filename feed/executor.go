package feed

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Executor runs publish work off the caller's goroutine on a fixed pool
// of workers. The queue is unbounded; depth is exported as a gauge so the
// operator can watch backpressure build.
type Executor struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	inline bool
	wg     sync.WaitGroup

	queueDepth prometheus.Gauge
}

// NewExecutor starts workers goroutines draining the task queue.
func NewExecutor(workers int, reg prometheus.Registerer) *Executor {
	if workers < 1 {
		workers = 1
	}
	e := &Executor{}
	e.cond = sync.NewCond(&e.mu)
	if reg != nil {
		e.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "feed_executor_queue_depth",
			Help: "Number of publish tasks waiting for a worker.",
		})
		reg.MustRegister(e.queueDepth)
	}
	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// NewSynchronousExecutor runs every task inline on the submitting
// goroutine. Only useful in tests, where deterministic delivery matters
// more than publish latency.
func NewSynchronousExecutor() *Executor {
	return &Executor{inline: true}
}

// Submit enqueues one task. Never blocks.
func (e *Executor) Submit(task func()) {
	if e.inline {
		task()
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, task)
	if e.queueDepth != nil {
		e.queueDepth.Set(float64(len(e.queue)))
	}
	e.mu.Unlock()
	e.cond.Signal()
}

// Stop drains the queue and stops the workers.
func (e *Executor) Stop() {
	if e.inline {
		return
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cond.Broadcast()
	e.wg.Wait()
}

func (e *Executor) worker() {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		if len(e.queue) == 0 && e.closed {
			e.mu.Unlock()
			return
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		if e.queueDepth != nil {
			e.queueDepth.Set(float64(len(e.queue)))
		}
		e.mu.Unlock()
		task()
	}
}

// strand serializes tasks for one topic on top of the shared executor:
// FIFO within the strand, parallel across strands.
type strand struct {
	exec *Executor

	mu     sync.Mutex
	queue  []func()
	active bool
}

func newStrand(exec *Executor) *strand {
	return &strand{exec: exec}
}

func (s *strand) post(task func()) {
	s.mu.Lock()
	s.queue = append(s.queue, task)
	if s.active {
		s.mu.Unlock()
		return
	}
	s.active = true
	s.mu.Unlock()
	s.exec.Submit(s.drain)
}

func (s *strand) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.active = false
			s.mu.Unlock()
			return
		}
		task := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		task()
	}
}
