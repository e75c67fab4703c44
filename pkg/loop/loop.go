// Package loop runs the client event loop.
//
// Each iteration gathers the live socket set, asks the scheduler how long it
// may block, waits for readability, serves every ready socket in gathered
// order and then runs due tasks unconditionally. A failing socket is logged
// and does not affect the others. The loop stops when its context is
// cancelled; cancellation is checked at the top of every iteration.
package loop

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/client"
	"github.com/mash-protocol/lwm2m-go/pkg/log"
)

// DefaultMaxWait is the idle bound when no task is scheduled.
const DefaultMaxWait = time.Second

// Runtime is what the loop drives. *client.Client implements it.
type Runtime interface {
	// Sockets returns the live socket set. It is fetched every iteration.
	Sockets() []client.Socket

	// Serve handles one readable socket.
	Serve(sock client.Socket) error

	// WaitTime returns the time until the next due task, bounded by maxWait.
	WaitTime(maxWait time.Duration) time.Duration

	// RunDue runs every due task and returns how many ran.
	RunDue() int
}

// Compile-time interface satisfaction check.
var _ Runtime = (*client.Client)(nil)

// Config configures a Loop.
type Config struct {
	// MaxWait bounds every wait so the loop stays responsive (default 1s).
	MaxWait time.Duration

	// Logger for serve failures. Nil disables logging.
	Logger *slog.Logger

	// Trace receives serve failures as error events. Nil disables tracing.
	Trace log.Logger
}

// DefaultConfig returns the default loop configuration.
func DefaultConfig() Config {
	return Config{MaxWait: DefaultMaxWait}
}

// Stats are cumulative loop counters.
type Stats struct {
	Iterations  uint64
	Served      uint64
	ServeErrors uint64
	TasksRun    uint64
}

// Loop is the event loop.
type Loop struct {
	runtime Runtime
	poller  Poller
	config  Config
	logger  *slog.Logger
	trace   log.Logger

	iterations  atomic.Uint64
	served      atomic.Uint64
	serveErrors atomic.Uint64
	tasksRun    atomic.Uint64
}

// New creates a loop. A nil poller selects UnixPoller.
func New(rt Runtime, poller Poller, config Config) *Loop {
	if poller == nil {
		poller = UnixPoller{}
	}
	if config.MaxWait <= 0 {
		config.MaxWait = DefaultMaxWait
	}
	return &Loop{
		runtime: rt,
		poller:  poller,
		config:  config,
		logger:  config.Logger,
		trace:   log.OrNoop(config.Trace),
	}
}

// Step runs one iteration. Only a poll failure is returned; serve errors are
// logged and counted.
func (l *Loop) Step() error {
	l.iterations.Add(1)

	socks := l.runtime.Sockets()
	wait := l.runtime.WaitTime(l.config.MaxWait)

	ready, err := l.poller.Poll(socks, wait)
	if err != nil {
		return err
	}

	for _, sock := range ready {
		if err := l.runtime.Serve(sock); err != nil {
			l.serveErrors.Add(1)
			l.warnLog("serve failed", "socket", sock.ID(), "error", err)
			l.trace.Log(log.Event{
				Timestamp: time.Now(),
				SocketID:  sock.ID(),
				Layer:     log.LayerLoop,
				Category:  log.CategoryError,
				Error:     &log.ErrorEventData{Message: err.Error(), Context: "serve"},
			})
			continue
		}
		l.served.Add(1)
	}

	ran := l.runtime.RunDue()
	l.tasksRun.Add(uint64(ran))
	return nil
}

// Run iterates until ctx is cancelled, returning nil, or until a poll fails,
// returning that error.
func (l *Loop) Run(ctx context.Context) error {
	l.debugLog("event loop started", "maxWait", l.config.MaxWait)
	for {
		if ctx.Err() != nil {
			l.debugLog("event loop stopped", "iterations", l.iterations.Load())
			return nil
		}
		if err := l.Step(); err != nil {
			if l.logger != nil {
				l.logger.Error("event loop failed", "error", err)
			}
			return err
		}
	}
}

// Stats returns a snapshot of the loop counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Iterations:  l.iterations.Load(),
		Served:      l.served.Load(),
		ServeErrors: l.serveErrors.Load(),
		TasksRun:    l.tasksRun.Load(),
	}
}

// debugLog logs a debug message if logging is enabled.
func (l *Loop) debugLog(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

func (l *Loop) warnLog(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Warn(msg, args...)
	}
}
