package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-relay/contract"
	relayerr "chat-relay/errors"
)

// DefaultRestartInterval is the pause between a worker panic and its restart.
const DefaultRestartInterval = 200 * time.Millisecond

// Supervisor owns a context and a Cancel function.
// Runs each worker in a goroutine, recovers panics and restarts the panicked
// worker after a delay. A worker returning, with or without error, is
// terminal: only panics restart. Shuts down when the parent context is
// canceled and waits for every goroutine via WaitGroup.
type Supervisor struct {
	Cancel          context.CancelFunc
	wg              *sync.WaitGroup
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
}

var _ contract.ISupervisor = (*Supervisor)(nil)

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &Supervisor{wg: &sync.WaitGroup{}, log: log, restartInterval: restartInterval}
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Run creates a local cancellation trigger tied to the parent ctx, starts
// every added worker under it and blocks until they all finish.
// If the parent cancels, the children cancel. If s.Cancel() is called, only
// the children cancel.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

// Start runs one worker under supervision in a dedicated goroutine.
// A panic in Run is recovered and the worker restarts after the configured
// interval; one crashing worker never takes the supervisor down with it.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	workerName := nameOf(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info(fmt.Sprintf("Stopping : %s", workerName))
				return
			}

			err := func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						s.log.Error("Worker panicked", "name", workerName, "panic", r)
						err = relayerr.ErrWorkerPanic
					}
				}()
				return worker.Run(ctx)
			}()

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", workerName)
				return
			}

			if err == nil {
				// Terminated properly, never restart
				s.log.Info(fmt.Sprintf("Worker finished : %s", workerName))
				return
			}

			if err != relayerr.ErrWorkerPanic {
				// An error return is a deliberate end, not a crash
				s.log.Warn("Worker failed", "name", workerName, "error", err)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", workerName)
			select {
			case <-ctx.Done():
				// Priority stop, skip the restart delay
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

// Stop cancels all supervised goroutines; Run keeps waiting for them.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}

// nameOf prefers a worker's own Name method so wrapped tasks log under the
// task's type instead of the wrapper's.
func nameOf(w contract.Worker) string {
	if n, ok := w.(interface{ Name() string }); ok {
		return n.Name()
	}
	return contract.GetWorkerName(w)
}
