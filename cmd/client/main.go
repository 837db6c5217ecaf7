package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/client"
	"chat-relay/internal"
	"chat-relay/logs"
	"chat-relay/primes"
	"chat-relay/runtime/workers"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the client lifecycle: configuration loading, the identity
// handshake, and the two console halves over one connection.
// This pattern ensures clean resource management and error propagation.
func run() (int, error) {
	// 1. Load configuration, prompting for whatever is missing.
	settings, err := internal.LoadClientSettings(".env", internal.NewStdinPrompter(os.Stdin, os.Stdout))
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(settings.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Cipher key material, the same cache the server derives keys from.
	var cache *primes.Cache
	if settings.Cipher {
		cache, err = primes.Ensure(settings.PrimesFile, settings.PrimesLimit)
		if err != nil {
			return exitConfig, fmt.Errorf("prime cache: %w", err)
		}
	}

	// 4. Establish the connection and identify it.
	conn, err := client.Dial(settings.Addr(), cache)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", settings.Addr(), err)
	}
	// Defer ensures the connection is closed even if a half fails later.
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	render := client.NewRenderer(os.Stdout, settings.Colours)
	fmt.Printf(">>> Connected to %s as %s! (/quit or Ctrl+D to leave)\n",
		settings.Addr(), settings.SenderName)

	// 5. The receiving half runs supervised in the background.
	sup := workers.NewSupervisor(log, workers.DefaultRestartInterval)
	sup.Add(client.NewReceiver(conn, render, log))
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	// 6. The sending half owns the console until /quit or end of input.
	if err := client.NewSender(conn, settings.SenderName, os.Stdin, render, log).Run(ctx); err != nil {
		return exitRuntime, err
	}

	// 7. Final cleanup: closing the connection unblocks the receiver.
	stop()
	_ = conn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	return exitOK, nil
}
