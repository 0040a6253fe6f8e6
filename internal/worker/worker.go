package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// State of the background worker.
type State string

const (
	StateStopped  State = "stopped"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Runner executes one poll cycle.
type Runner interface {
	RunCycle(ctx context.Context) error
}

// Controller owns the single polling goroutine and its lifecycle. All state
// transitions go through the mutex: Start on a running worker and Stop on a
// stopped one are explicit no-ops, never races.
type Controller struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewController creates a controller in the stopped state.
func NewController(runner Runner, interval time.Duration, logger *slog.Logger) *Controller {
	return &Controller{
		runner:   runner,
		interval: interval,
		state:    StateStopped,
		logger:   logger.With("component", "worker"),
	}
}

// Start launches the poll loop. Returns false if the worker was already
// running (or still stopping).
func (c *Controller) Start() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStopped {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.state = StateRunning
	c.cancel = cancel
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})

	go c.run(ctx, c.stopCh, c.doneCh)

	c.logger.Info("worker started", "interval", c.interval)
	return true
}

// Stop requests shutdown and waits for the loop to exit. Returns false if the
// worker was not running. The wait is bounded by one sleep increment plus the
// current cycle.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return false
	}
	c.state = StateStopping
	c.cancel()
	close(c.stopCh)
	done := c.doneCh
	c.mu.Unlock()

	<-done
	return true
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Running reports whether the poll loop is active.
func (c *Controller) Running() bool {
	return c.State() == StateRunning
}

func (c *Controller) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.state = StateStopped
		c.mu.Unlock()
		close(doneCh)
		c.logger.Info("worker stopped")
	}()

	for {
		c.safeCycle(ctx)
		if !c.sleep(ctx, stopCh) {
			return
		}
	}
}

// safeCycle runs one cycle. A failing or even panicking cycle is logged and
// survived; the loop only exits on a stop request.
func (c *Controller) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("poll cycle panicked", "panic", r)
		}
	}()

	if err := c.runner.RunCycle(ctx); err != nil {
		c.logger.Error("poll cycle failed", "error", err)
	}
}

// sleep waits out the poll interval in one-second increments, re-checking the
// stop signal each step so shutdown latency is bounded by one increment, not
// the full interval. Returns false when the loop should exit.
func (c *Controller) sleep(ctx context.Context, stopCh chan struct{}) bool {
	remaining := c.interval
	for remaining > 0 {
		step := time.Second
		if remaining < step {
			step = remaining
		}
		select {
		case <-stopCh:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
		remaining -= step
	}
	return true
}
