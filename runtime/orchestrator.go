package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/moderation"
	"chat-relay/primes"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
)

// shutdownGrace bounds how long Stop waits for supervised workers to drain.
const shutdownGrace = 5 * time.Second

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	registry       contract.IRegistry
	relay          *Queue[domain.Envelope]
	events         *Queue[event.DomainEvent]
	permanentSinks []contract.EventSink
	acceptor       *workers.Acceptor
	cache          *primes.Cache
	addr           string
	censorFile     string
	censorChar     rune
	sinkTimeout    time.Duration
	healthInterval time.Duration
	started        bool
	done           chan struct{}
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, cache *primes.Cache,
	addr, censorFile string, censorChar rune,
	sinkTimeout, healthInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		registry:       registry,
		relay:          NewQueue[domain.Envelope](),
		events:         NewQueue[event.DomainEvent](),
		permanentSinks: nil,
		cache:          cache,
		addr:           addr,
		censorFile:     censorFile,
		censorChar:     censorChar,
		sinkTimeout:    sinkTimeout,
		healthInterval: healthInterval,
		done:           make(chan struct{}),
	}
}

// Add registers extra event sinks next to the built-in log sink.
// Call it before Start.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Addr reports the bound listening address, nil before Start.
func (o *Orchestrator) Addr() net.Addr {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.acceptor == nil {
		return nil
	}
	return o.acceptor.Addr()
}

// Start initiates the orchestrator by preparing all components (socket,
// moderation, pipeline) and then starting the supervisor. It uses a
// preparation pattern to minimize mutex locking time.
// A failure to bind or to load the dictionary is returned as is: startup
// problems abort the process, they are never retried.
func (o *Orchestrator) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	// Heavy tasks like I/O (binding, loading files) and CPU (Aho-Corasick
	// build) are done here.
	acceptor := workers.NewAcceptor(o.addr, o.registry, o.relay, o.events,
		o.supervisor, o.cache, o.log)
	if err := acceptor.Listen(); err != nil {
		return err
	}

	moderator, err := o.prepareModeration()
	if err != nil {
		return err
	}
	distributor := workers.NewDistributor(o.registry, o.relay, o.events, moderator, o.log)

	fanout, health := o.preparePipeline()

	// 2. Critical Section (Short Lock)
	// We only lock to update the internal state and the supervisor.
	o.mu.Lock()
	o.acceptor = acceptor
	o.started = true

	o.supervisor.Add(workers.NewLoop(acceptor, o.log))
	o.supervisor.Add(workers.NewLoop(distributor, o.log))
	o.supervisor.Add(fanout)
	o.supervisor.Add(health)
	o.mu.Unlock()

	// 3. Execution phase (No Lock)
	// The supervisor blocks until every worker is finished, so it runs in
	// its own goroutine and Stop waits on done.
	o.log.Info("Starting orchestrator and all supervised workers")
	go func() {
		o.supervisor.Run(ctx)
		close(o.done)
	}()
	return nil
}

// prepareModeration loads the dictionary and builds the Aho-Corasick
// automaton. An empty path disables moderation, the distributor then relays
// bodies verbatim.
func (o *Orchestrator) prepareModeration() (*moderation.Moderator, error) {
	if o.censorFile == "" {
		o.log.Info("Moderation disabled, relaying bodies verbatim")
		return nil, nil
	}

	words, err := moderation.LoadWords(o.censorFile)
	if err != nil {
		return nil, err
	}
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(words)))

	moderator, err := moderation.NewModerator(words, o.censorChar, o.log)
	if err != nil {
		return nil, err
	}
	return &moderator, nil
}

// preparePipeline initializes the sinks, the fanout worker and the health
// probe.
func (o *Orchestrator) preparePipeline() (contract.Worker, contract.Worker) {
	allSinks := append([]contract.EventSink{sink.NewLogSink(o.log)}, o.permanentSinks...)

	fanout := workers.NewEventFanout(o.events, o.sinkTimeout, o.log).Add(allSinks...)
	health := workers.NewHealthWorker(o.registry, o.relay.Len, o.events.Len,
		o.healthInterval, o.log)
	return fanout, health
}

// Stop initiates a graceful shutdown: it cancels the supervision context to
// signal workers to stop, then waits until they have drained or the grace
// period runs out.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")

	o.mu.Lock()
	started := o.started
	o.mu.Unlock()

	o.supervisor.Stop()
	if !started {
		return
	}

	select {
	case <-o.done:
		o.log.Debug("All supervised workers drained")
	case <-time.After(shutdownGrace):
		o.log.Warn("Shutdown grace period elapsed before workers drained")
	}
}
