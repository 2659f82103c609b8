package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mertbulan/philips-airpurifier/pkg/log"
	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

// Observe subscribes to device push updates and returns a channel of
// status snapshots in device emission order. Only one observe stream
// may be active per session.
//
// The stream recovers from transport errors, malformed frames, and
// device restarts without surfacing anything to the consumer. If
// recovery exhausts its budget the channel closes and ObserveErr
// returns ErrObserveFailed; cancelling ctx or closing the session
// closes the channel cleanly.
func (s *Session) Observe(ctx context.Context) (<-chan wire.Status, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	if !s.observing.CompareAndSwap(false, true) {
		return nil, ErrObserveActive
	}

	if err := s.subscribe(ctx); err != nil {
		s.observing.Store(false)
		return nil, fmt.Errorf("%w: %w", ErrObserveFailed, err)
	}
	s.logState(log.StateEntityObserve, "", "STREAMING", "")

	out := make(chan wire.Status)
	s.wg.Add(1)
	go s.observeLoop(ctx, out)
	return out, nil
}

// ObserveErr reports why the observe stream ended. It returns
// ErrObserveFailed after a terminal recovery failure and nil after a
// clean shutdown (context cancelled or session closed).
func (s *Session) ObserveErr() error {
	s.observeMu.Lock()
	defer s.observeMu.Unlock()
	return s.observeErr
}

func (s *Session) setObserveErr(err error) {
	s.observeMu.Lock()
	s.observeErr = err
	s.observeMu.Unlock()
}

// subscribe registers this session for push updates.
func (s *Session) subscribe(ctx context.Context) error {
	resp, err := s.exchange(ctx, &wire.Message{Type: wire.TypeRequest, Op: wire.OpObserve, Session: s.Token()}, s.config.ConnectTimeout)
	if err != nil {
		return err
	}
	if resp.Result != wire.ResultOK {
		return errors.New("subscription rejected by device")
	}
	return nil
}

// refresh re-runs the handshake and subscription after the device
// session was lost.
func (s *Session) refresh(ctx context.Context) error {
	if err := s.sync(ctx); err != nil {
		return err
	}
	return s.subscribe(ctx)
}

// observeLoop delivers deduplicated snapshots until the stream ends.
func (s *Session) observeLoop(ctx context.Context, out chan<- wire.Status) {
	defer s.wg.Done()
	defer close(out)
	defer s.observing.Store(false)

	backoff := NewBackoff(BackoffConfig{
		Initial: s.config.ResubscribeInitial,
		Max:     s.config.ResubscribeMax,
		Jitter:  JitterFactor,
	})

	lost := s.lostChan()
	var sid string   // device session token of the last accepted push
	var seq uint32   // last accepted notification sequence
	var seen bool

	// Sequence numbers are scoped to one device session. After a
	// recovery the dedup state stays valid as long as the handshake
	// landed on the same session; a replayed notification from before
	// the gap must still be dropped. Only a new token voids it.
	resetIfNewSession := func() {
		if tok := s.Token(); tok != sid {
			sid = tok
			seen = false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.closeCh:
			return

		case <-lost:
			s.logState(log.StateEntityObserve, "STREAMING", "RECONNECTING", "transport error")
			if err := s.recover(ctx, backoff, true); err != nil {
				if errors.Is(err, ErrObserveFailed) {
					s.setObserveErr(err)
					s.logState(log.StateEntityObserve, "RECONNECTING", "FAILED", "recovery budget exhausted")
				}
				return
			}
			lost = s.lostChan()
			resetIfNewSession()

		case err := <-s.brokenCh:
			s.logState(log.StateEntityObserve, "STREAMING", "RESUBSCRIBING", err.Error())
			if err := s.recover(ctx, backoff, false); err != nil {
				if errors.Is(err, ErrObserveFailed) {
					s.setObserveErr(err)
					s.logState(log.StateEntityObserve, "RESUBSCRIBING", "FAILED", "recovery budget exhausted")
				}
				return
			}
			resetIfNewSession()

		case m := <-s.notifyCh:
			if seen && m.Session != "" && m.Session != sid {
				// The session token changed: the device restarted and
				// our subscription died with it. Re-establish quietly;
				// the push itself is fresh state and is still delivered.
				s.logState(log.StateEntityObserve, "STREAMING", "RESUBSCRIBING", "device session changed")
				if err := s.refresh(ctx); err != nil {
					if err := s.recover(ctx, backoff, false); err != nil {
						if errors.Is(err, ErrObserveFailed) {
							s.setObserveErr(err)
						}
						return
					}
				}
				seen = false
			}
			if m.Session != "" {
				sid = m.Session
			}
			if seen && m.ID <= seq {
				continue // duplicate or stale delivery
			}
			seq = m.ID
			seen = true

			select {
			case out <- m.Fields.Clone():
			case <-ctx.Done():
				return
			case <-s.closeCh:
				return
			}
			backoff.Reset()
		}
	}
}

// recover re-establishes the observe subscription with capped backoff,
// redialing the socket first when the old one is gone. It returns nil
// once streaming resumes, ErrObserveFailed when the consecutive
// attempt budget is exhausted, and the context or close error when the
// stream should end quietly.
func (s *Session) recover(ctx context.Context, backoff *Backoff, redial bool) error {
	for attempt := 1; attempt <= s.config.ResubscribeAttempts; attempt++ {
		delay := backoff.Next()
		if cb := s.config.OnResubscribe; cb != nil {
			cb(attempt, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-s.closeCh:
			timer.Stop()
			return ErrSessionClosed
		case <-timer.C:
		}

		if redial {
			if err := s.dial(); err != nil {
				if errors.Is(err, ErrSessionClosed) {
					return err
				}
				s.logError(log.LayerTransport, err, "redialing device")
				continue
			}
			redial = false
		}
		if err := s.refresh(ctx); err != nil {
			if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
				return err
			}
			s.logError(log.LayerTransport, err, "resubscribing")
			continue
		}

		s.logState(log.StateEntityObserve, "RECONNECTING", "STREAMING", "")
		backoff.Reset()
		return nil
	}
	return ErrObserveFailed
}
