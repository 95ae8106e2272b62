package udpsrv

import (
	"context"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
)

// Lifecycle turns external termination requests into a cancelled context that
// interrupts the multiplexer, and releases the queued responses once the event
// loop has stopped.
type Lifecycle struct {
	queue *ResponseQueue
	mux   Multiplexer
	log   zerolog.Logger
}

func NewLifecycle(queue *ResponseQueue, mux Multiplexer, log zerolog.Logger) *Lifecycle {
	return &Lifecycle{queue: queue, mux: mux, log: log}
}

// Watch returns a context that is done when parent is done or one of sigs arrives.
// When it is done the multiplexer is woken so a blocked Wait returns.
// The returned stop function must be called to unregister the signals.
func (lc *Lifecycle) Watch(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stopSignals := func() {}
	if len(sigs) > 0 {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, sigs...)
		go func() {
			select {
			case sig := <-ch:
				lc.log.Info().Str("signal", sig.String()).Msg("termination requested")
				cancel()
			case <-ctx.Done():
			}
		}()
		stopSignals = func() { signal.Stop(ch) }
	}
	stopWake := context.AfterFunc(ctx, lc.mux.Wake)

	return ctx, func() {
		stopSignals()
		stopWake()
		cancel()
	}
}

// Release drains the queue and releases every entry. It must run on the event
// loop's goroutine after the loop has stopped.
func (lc *Lifecycle) Release() int {
	n := lc.queue.DrainAndRelease()
	if n > 0 {
		lc.log.Info().Int("dropped", n).Msg("released queued responses")
	}
	return n
}
