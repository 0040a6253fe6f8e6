package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

type countingRunner struct {
	cycles atomic.Int64
	err    error
	panics bool
}

func (r *countingRunner) RunCycle(ctx context.Context) error {
	r.cycles.Add(1)
	if r.panics {
		panic("boom")
	}
	return r.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestControllerStartStop(t *testing.T) {
	runner := &countingRunner{}
	c := NewController(runner, 10*time.Millisecond, discard())

	if c.State() != StateStopped {
		t.Fatalf("initial state = %q, want stopped", c.State())
	}
	if !c.Start() {
		t.Fatal("Start returned false on a stopped controller")
	}
	if c.Start() {
		t.Error("second Start should return false while running")
	}
	if !c.Running() {
		t.Error("Running() = false after Start")
	}

	waitFor(t, func() bool { return runner.cycles.Load() >= 2 })

	if !c.Stop() {
		t.Fatal("Stop returned false on a running controller")
	}
	if c.State() != StateStopped {
		t.Errorf("state after Stop = %q, want stopped", c.State())
	}
	if c.Stop() {
		t.Error("second Stop should return false")
	}
}

func TestControllerRestart(t *testing.T) {
	runner := &countingRunner{}
	c := NewController(runner, 5*time.Millisecond, discard())

	c.Start()
	waitFor(t, func() bool { return runner.cycles.Load() >= 1 })
	c.Stop()

	before := runner.cycles.Load()
	if !c.Start() {
		t.Fatal("Start after Stop returned false")
	}
	waitFor(t, func() bool { return runner.cycles.Load() > before })
	c.Stop()
}

func TestControllerSurvivesFailingCycles(t *testing.T) {
	runner := &countingRunner{err: errors.New("imap down")}
	c := NewController(runner, 5*time.Millisecond, discard())

	c.Start()
	waitFor(t, func() bool { return runner.cycles.Load() >= 3 })
	c.Stop()
}

func TestControllerSurvivesPanic(t *testing.T) {
	runner := &countingRunner{panics: true}
	c := NewController(runner, 5*time.Millisecond, discard())

	c.Start()
	waitFor(t, func() bool { return runner.cycles.Load() >= 2 })
	if !c.Stop() {
		t.Error("Stop failed after panicking cycles")
	}
}

func TestControllerStopInterruptsLongInterval(t *testing.T) {
	runner := &countingRunner{}
	c := NewController(runner, time.Hour, discard())

	c.Start()
	waitFor(t, func() bool { return runner.cycles.Load() >= 1 })

	start := time.Now()
	c.Stop()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop took %v, want well under the poll interval", elapsed)
	}
}
