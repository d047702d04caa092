package profiler

import (
	"context"
	"fmt"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
)

const (
	defaultProfileDuration   = 100
	defaultStreamDuration    = 10
	defaultEmailDuration     = 100
	defaultCallgrindDuration = 100
)

// Console is the command surface a host exposes to its interactive prompt. Durations of zero
// select the per-type default.
type Console struct {
	p *Profiler
}

func orDefault(duration, def int64) int64 {
	if duration <= 0 {
		return def
	}
	return duration
}

// Profile runs for duration ticks and prints the report on the last one.
func (c *Console) Profile(duration int64, filter string) error {
	return c.p.StartSession(common.SessionTypeProfile, orDefault(duration, defaultProfileDuration), filter)
}

// Stream runs for duration ticks and prints the report on every tick.
func (c *Console) Stream(duration int64, filter string) error {
	return c.p.StartSession(common.SessionTypeStream, orDefault(duration, defaultStreamDuration), filter)
}

// Email runs for duration ticks and sends the report through the notifier on the last one.
func (c *Console) Email(duration int64, filter string) error {
	return c.p.StartSession(common.SessionTypeEmail, orDefault(duration, defaultEmailDuration), filter)
}

// Background runs until Reset and only reports on request.
func (c *Console) Background(filter string) error {
	return c.p.StartSession(common.SessionTypeBackground, 0, filter)
}

// Callgrind runs for duration ticks and exports a call graph on the last one.
func (c *Console) Callgrind(duration int64, filter string) error {
	return c.p.StartSession(common.SessionTypeCallgrind, orDefault(duration, defaultCallgrindDuration), filter)
}

// Start runs the command matching st, so per-type default durations apply. Only background
// sessions are indefinite.
func (c *Console) Start(st common.SessionType, duration int64, filter string) error {
	switch st {
	case common.SessionTypeProfile:
		return c.Profile(duration, filter)
	case common.SessionTypeStream:
		return c.Stream(duration, filter)
	case common.SessionTypeEmail:
		return c.Email(duration, filter)
	case common.SessionTypeBackground:
		return c.Background(filter)
	case common.SessionTypeCallgrind:
		return c.Callgrind(duration, filter)
	}
	return fmt.Errorf("%q: %w", st, ErrUnknownSessionType)
}

// Output prints the current report; profiling continues.
func (c *Console) Output(limit int) {
	c.p.printf("%s\n", c.p.Output(limit))
}

// DownloadCallgrind exports the current call graph; profiling continues.
func (c *Console) DownloadCallgrind() {
	c.p.DownloadCallgrind()
}

// Restart starts the running session again with the same options.
func (c *Console) Restart() bool {
	return c.p.Restart() == nil
}

// Reset stops any session and drops its data.
func (c *Console) Reset() {
	c.p.ResetSession()
}

type commandResult struct {
	value interface{}
	err   error
}

type command struct {
	run   func(*Console) (interface{}, error)
	reply chan commandResult
}

// Submit queues fn to run on the tick goroutine at the start of the next Loop. It is safe to
// call from any goroutine.
func (p *Profiler) Submit(fn func(*Console)) error {
	cmd := &command{run: func(c *Console) (interface{}, error) {
		fn(c)
		return nil, nil
	}}
	select {
	case p.commands <- cmd: //non-blocking
		return nil
	default:
		return ErrCommandQueueFull
	}
}

// Do queues fn like Submit and waits for its result or for ctx to end.
func (p *Profiler) Do(ctx context.Context, fn func(*Console) (interface{}, error)) (interface{}, error) {
	cmd := &command{run: fn, reply: make(chan commandResult, 1)}
	select {
	case p.commands <- cmd:
	default:
		return nil, ErrCommandQueueFull
	}
	select {
	case res := <-cmd.reply:
		return res.value, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for tick: %w", ctx.Err())
	}
}

func (p *Profiler) drainCommands() {
	for {
		select {
		case cmd := <-p.commands:
			value, err := cmd.run(p.cli)
			if cmd.reply != nil {
				cmd.reply <- commandResult{value: value, err: err}
			}
		default:
			return
		}
	}
}
