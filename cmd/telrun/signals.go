package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Killer is the escalation surface the second signal reaches for.
type Killer interface {
	KillAll()
}

// watchSignals installs the shutdown signal policy: the first SIGINT or
// SIGTERM only cancels the run context, the shutdown itself happens on the
// main goroutine. A second signal escalates straight to SIGKILL for every
// child. The returned release func uninstalls the handler.
func watchSignals(ctx context.Context, cancel context.CancelFunc, sup Killer, log *slog.Logger) (release func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-ch:
			log.Info("shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		case <-done:
			return
		}
		select {
		case sig := <-ch:
			log.Warn("second signal, killing all children", "signal", sig.String())
			sup.KillAll()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
