package httpapi

import (
	"context"
	"errors"
)

// errShuttingDown is the cancel cause of generations cut short by shutdown.
var errShuttingDown = errors.New("server shutting down")

// serverBaseCtx is canceled when the process begins shutting down.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level context that bounds every generation.
// A nil ctx resets it to Background.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// generationContext derives a context from the request that is also canceled
// when the base context ends. Request values are kept.
func generationContext(r context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(r)
	stop := context.AfterFunc(serverBaseCtx, func() { cancel(errShuttingDown) })
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}

// shuttingDown reports whether ctx ended because of process shutdown.
func shuttingDown(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errShuttingDown)
}
