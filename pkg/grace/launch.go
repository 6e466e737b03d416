package grace

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// FatalOnError logs an error and terminates the process if err is not nil.
// It does nothing if err is nil or is a result of context cancellation, which is how a graceful shutdown ends.
func FatalOnError(log *zap.Logger, msg string, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	log.Fatal(msg, Fields(err)...)
}
