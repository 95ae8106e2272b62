package udpsrv

import (
	"bytes"
	"context"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var shutdownReply = []byte("\n")

// Server answers every datagram received on its endpoint with the upper-cased
// payload, sent back to the source address in arrival order.
type Server struct {
	ep        *Endpoint
	mux       Multiplexer
	queue     *ResponseQueue
	lc        *Lifecycle
	transform func(dst, src []byte) []byte

	cfg Config
	log zerolog.Logger
}

func NewServer(ep *Endpoint, mux Multiplexer, cfg Config) *Server {
	s := &Server{
		ep:        ep,
		mux:       mux,
		queue:     NewResponseQueue(cfg.QueueCap, cfg.Overflow),
		transform: AppendUpper,
		cfg:       cfg,
		log:       cfg.logger(),
	}
	s.lc = NewLifecycle(s.queue, mux, s.log)
	return s
}

// Queue exposes the pending responses. It must not be used while Serve runs.
func (s *Server) Queue() *ResponseQueue { return s.queue }

// Serve runs the event loop until ctx is done, one of Config.Signals arrives, a
// shutdown token is received, or an I/O error occurs. Queued responses are released
// on every return path. A requested shutdown returns nil.
func (s *Server) Serve(ctx context.Context) error {
	ctx, stop := s.lc.Watch(ctx, s.cfg.Signals...)
	defer stop()
	defer s.lc.Release()

	s.log.Info().Stringer("addr", s.ep.LocalAddr()).Msg("serving")
	for {
		if ctx.Err() != nil {
			s.log.Info().Int("pending", s.queue.Size()).Msg("shutting down")
			return nil
		}

		ready, err := s.mux.Wait(s.interest())
		if err != nil {
			s.log.Error().Err(err).Msg("wait")
			return errors.Wrap(err, "wait")
		}
		if ctx.Err() != nil {
			continue
		}

		if ready&InterestRead != 0 {
			quit, err := s.handleRead()
			if err != nil {
				s.log.Error().Err(err).Msg("receive")
				return errors.Wrap(err, "receive")
			}
			if quit {
				return nil
			}
		}

		if ready&InterestWrite != 0 && s.queue.Size() > 0 {
			if err := s.handleWrite(); err != nil {
				if s.cfg.SendErrors == SendErrorFatal {
					s.log.Error().Err(err).Msg("send")
					return errors.Wrap(err, "send")
				}
				s.log.Warn().Err(err).Msg("send failed, response dropped")
			}
		}
	}
}

// interest is read unless a reject-new queue is full, plus write while responses are pending.
func (s *Server) interest() Interest {
	var want Interest
	if !(s.cfg.Overflow == RejectNew && s.queue.Full()) {
		want |= InterestRead
	}
	if s.queue.Size() > 0 {
		want |= InterestWrite
	}
	return want
}

// handleRead receives one datagram and queues its response. It reports true when
// the datagram was a shutdown request.
func (s *Server) handleRead() (bool, error) {
	data, from, err := s.ep.Receive()
	if err != nil {
		return false, err
	}
	s.log.Debug().Stringer("from", from).Int("len", len(data)).Msg("read")

	if len(s.cfg.ShutdownToken) > 0 && bytes.HasPrefix(data, s.cfg.ShutdownToken) {
		s.log.Info().Stringer("from", from).Msg("shutdown requested by peer")
		if _, err := s.ep.SendTo(shutdownReply, from); err != nil {
			s.log.Warn().Err(err).Msg("shutdown reply")
		}
		return true, nil
	}

	r := newPendingResponse(data, from, s.transform)
	if err := s.queue.Enqueue(r); err != nil {
		// the queue released r
		s.log.Warn().Err(err).Stringer("from", from).Msg("response dropped")
	}
	return false, nil
}

// handleWrite sends the head of the queue once and releases it whatever the outcome.
func (s *Server) handleWrite() error {
	r := s.queue.DequeueFront()
	defer r.release()

	n, err := s.ep.SendTo(r.payload, r.addr)
	if err != nil {
		atomic.AddUint64(&DefaultStats.SendErrors, 1)
		return err
	}
	s.log.Debug().Stringer("to", r.addr).Int("len", n).Msg("write")
	return nil
}
