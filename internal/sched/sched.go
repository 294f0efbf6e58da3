package sched

import (
	"sync"
	"time"
)

// Debouncer is a single-slot trailing-edge timer: scheduling a call cancels
// any previously armed one, so a burst of requests collapses into a single
// invocation with the last function supplied.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule arms fn to run after the configured quiet period, replacing any
// pending call. fn runs on a timer goroutine.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending call. A call already running is not interrupted.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Poller invokes a function immediately and then on a fixed interval until
// stopped. Stop is idempotent and waits for no in-flight invocation.
type Poller struct {
	interval time.Duration
	fn       func()

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewPoller(interval time.Duration, fn func()) *Poller {
	return &Poller{
		interval: interval,
		fn:       fn,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the poll loop. The first invocation happens synchronously
// inside the loop goroutine before the first tick.
func (p *Poller) Start() {
	go func() {
		defer close(p.doneCh)

		p.fn()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.fn()
			}
		}
	}()
}

// Stop terminates the poll loop and blocks until it has exited.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.doneCh
}
