// Package workers contains the supervised activities of the relay. Each one
// is either a plain contract.Worker or a contract.Task driven by Loop.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"chat-relay/contract"
	relayerr "chat-relay/errors"
)

// Loop adapts a contract.Task into a contract.Worker.
//
// Run executes Init once, then Step until the context ends or a step returns
// an error, then Stop, unconditionally: an Init failure still reaches Stop,
// so resources acquired halfway are released on every path. A step error
// wrapping errors.ErrStopTask ends the loop cleanly; a Stop error is logged
// and never propagated.
type Loop struct {
	task  contract.Task
	log   *slog.Logger
	state atomic.Int32
}

var _ contract.Worker = (*Loop)(nil)

func NewLoop(task contract.Task, log *slog.Logger) *Loop {
	l := &Loop{task: task, log: log}
	l.state.Store(int32(contract.StateCreated))
	return l
}

// State reports where the task currently stands. Used by health gauges and
// tests; the value is advisory, not a synchronization point.
func (l *Loop) State() contract.TaskState {
	return contract.TaskState(l.state.Load())
}

// Name exposes the underlying task's type name for log fields, so every
// Loop does not show up as "Loop" in supervision logs.
func (l *Loop) Name() string {
	t := reflect.TypeOf(l.task)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

func (l *Loop) Run(ctx context.Context) error {
	name := l.Name()

	defer func() {
		l.state.Store(int32(contract.StateStopping))
		if stopErr := l.task.Stop(); stopErr != nil {
			l.log.Warn("Task stop reported an error", "task", name, "error", stopErr)
		}
		l.state.Store(int32(contract.StateTerminated))
	}()

	l.state.Store(int32(contract.StateInitializing))
	if err := l.task.Init(ctx); err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}

	l.state.Store(int32(contract.StateRunning))
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := l.task.Step(ctx); err != nil {
			if errors.Is(err, relayerr.ErrStopTask) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("step %s: %w", name, err)
		}
	}
}
