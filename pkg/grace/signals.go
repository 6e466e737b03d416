package grace

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"
)

// Standard OS signals that we want our applications to respect to shutdown nicely
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// exit is replaced in tests
var exit = os.Exit

// NewSignalHandlingContext returns a child of parent canceled on one of shutdownSignals (usually SIGTERM and SIGINT).
// In case of another signal received during cancellation, the application is terminated with exit code 1.
// Stop function releases signal handlers.
func NewSignalHandlingContext(parent context.Context, log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	c := make(chan os.Signal, 2)
	signal.Notify(c, shutdownSignals...)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-c:
			log.Info("shutdown requested", zap.Stringer("signal", sig))
			cancel()
		case <-done:
			return
		}

		select {
		case sig := <-c:
			log.Warn("second signal received, exiting immediately", zap.Stringer("signal", sig))
			exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(c)
			cancel()
			close(done)
		})
	}

	return ctx, stop
}
