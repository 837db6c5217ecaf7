package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"chat-relay/internal"
	"chat-relay/logs"
	"chat-relay/primes"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/sink"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the relay lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the supervised workers.
func run() error {
	// 1. Configuration & Logger
	settings, err := internal.LoadServerSettings(".env", internal.NewStdinPrompter(os.Stdin, os.Stdout))
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(settings.LogLevel)

	censorChar, err := internal.CharacterRune(settings.CensorChar)
	if err != nil {
		return err
	}

	// 2. Cipher key material
	var cache *primes.Cache
	if settings.Cipher {
		cache, err = primes.Ensure(settings.PrimesFile, settings.PrimesLimit)
		if err != nil {
			return fmt.Errorf("prime cache: %w", err)
		}
		log.Info(fmt.Sprintf("%d primes ready, biggest %d", cache.Len(), cache.Biggest()))
	}

	// 3. Audit trail (BadgerDB)
	var db *badger.DB
	if settings.AuditDB != "" {
		db, err = badger.Open(badger.DefaultOptions(settings.AuditDB).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return fmt.Errorf("audit store opening failed: %w", err)
		}
		//  Defer will be executed before run() returned anything to main()
		defer func() {
			log.Info("Closing audit store...")
			_ = db.Close()
		}()
	}

	// 4. Setup Supervision & Orchestration
	sup := workers.NewSupervisor(log, settings.RestartInterval)
	registry := runtime.NewRegistry()

	orchestrator := runtime.NewOrchestrator(
		log, sup, registry, cache,
		settings.Addr(), settings.CensorFile, censorChar,
		settings.SinkTimeout, settings.HealthInterval,
	)
	if db != nil {
		orchestrator.Add(sink.NewAuditSink(repositories.NewSessionRepository(db, log), log))
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Start the relay
	if err = orchestrator.Start(ctx); err != nil {
		return fmt.Errorf("relay failed to start: %w", err)
	}

	// 7. Wait for Stop
	<-ctx.Done()
	log.Info("Shutting down gracefully...")

	// 8. Final Cleanup
	orchestrator.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
