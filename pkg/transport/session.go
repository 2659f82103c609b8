package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mertbulan/philips-airpurifier/pkg/log"
	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

// Protocol constants.
const (
	// DefaultPort is the well-known port of the purifier protocol.
	DefaultPort = 5683

	// MaxDatagramSize is the largest datagram the driver accepts.
	MaxDatagramSize = 8192

	// maxLogFrameSize caps raw frame bytes included in log events.
	maxLogFrameSize = 1024
)

// Timing defaults.
const (
	// DefaultConnectTimeout bounds the sync handshake and every
	// request/response exchange on the session socket.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultFetchAttempts is the status fetch retry bound.
	DefaultFetchAttempts = 3

	// DefaultFetchBackoff is the initial delay between fetch attempts;
	// it doubles per attempt.
	DefaultFetchBackoff = 250 * time.Millisecond

	// DefaultCommandTimeout bounds the wait for a control ack.
	DefaultCommandTimeout = 2 * time.Second

	// DefaultResubscribeAttempts is the budget of consecutive failed
	// observe recoveries before the stream ends with ErrObserveFailed.
	DefaultResubscribeAttempts = 20
)

// Transport errors.
var (
	// ErrConnectFailed indicates the handshake did not complete.
	ErrConnectFailed = errors.New("connect failed")

	// ErrFetchFailed indicates the status fetch exhausted its retries.
	ErrFetchFailed = errors.New("status fetch failed")

	// ErrCommandTimeout indicates no ack arrived within the timeout.
	ErrCommandTimeout = errors.New("command timed out")

	// ErrCommandRejected indicates the device answered with an error ack.
	ErrCommandRejected = errors.New("command rejected by device")

	// ErrObserveFailed indicates the observe stream could not be
	// re-established within its retry budget.
	ErrObserveFailed = errors.New("observe stream failed")

	// ErrObserveActive indicates a second Observe on the same session.
	ErrObserveActive = errors.New("observe stream already active")

	// ErrSessionClosed indicates the session or commander was closed.
	ErrSessionClosed = errors.New("session closed")
)

// Config configures a Session or Commander. The zero value uses the
// protocol defaults.
type Config struct {
	// Port overrides the well-known device port.
	Port int

	// ConnectTimeout bounds the handshake and each exchange.
	ConnectTimeout time.Duration

	// FetchAttempts bounds status fetch retries.
	FetchAttempts int

	// FetchBackoff is the initial fetch retry delay; doubles per attempt.
	FetchBackoff time.Duration

	// CommandTimeout bounds the wait for a control ack.
	CommandTimeout time.Duration

	// ResubscribeInitial is the initial observe recovery delay.
	ResubscribeInitial time.Duration

	// ResubscribeMax caps the observe recovery delay.
	ResubscribeMax time.Duration

	// ResubscribeAttempts is the consecutive recovery budget.
	ResubscribeAttempts int

	// Logger receives protocol events. Nil disables protocol logging.
	Logger log.Logger

	// OnResubscribe is called before each observe recovery attempt.
	OnResubscribe func(attempt int, delay time.Duration)
}

// withDefaults fills unset fields with the protocol defaults.
func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.FetchAttempts == 0 {
		c.FetchAttempts = DefaultFetchAttempts
	}
	if c.FetchBackoff == 0 {
		c.FetchBackoff = DefaultFetchBackoff
	}
	if c.CommandTimeout == 0 {
		c.CommandTimeout = DefaultCommandTimeout
	}
	if c.ResubscribeInitial == 0 {
		c.ResubscribeInitial = InitialBackoff
	}
	if c.ResubscribeMax == 0 {
		c.ResubscribeMax = MaxBackoff
	}
	if c.ResubscribeAttempts == 0 {
		c.ResubscribeAttempts = DefaultResubscribeAttempts
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	return c
}

// Session is one logical connection to one device. It owns the socket,
// demultiplexes responses to pending exchanges, and drives the observe
// stream. A Session is created with Open and released with Close.
type Session struct {
	config Config
	id     string // local session ID for log correlation
	remote string // device address (host:port)

	mu     sync.Mutex
	conn   *net.UDPConn
	lost   chan struct{} // closed by the read loop of the current conn on a fatal error
	token  string        // device session token from the sync handshake
	closed bool

	nextID atomic.Uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan *wire.Message

	notifyCh chan *wire.Message
	brokenCh chan error

	observing  atomic.Bool
	observeMu  sync.Mutex
	observeErr error

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open dials the device at host and performs the sync handshake.
// The handshake is bounded by Config.ConnectTimeout (default 5s);
// failure is reported wrapped in ErrConnectFailed.
func Open(ctx context.Context, host string, config Config) (*Session, error) {
	config = config.withDefaults()

	s := &Session{
		config:   config,
		id:       uuid.NewString(),
		remote:   net.JoinHostPort(host, strconv.Itoa(config.Port)),
		pending:  make(map[uint32]chan *wire.Message),
		notifyCh: make(chan *wire.Message, 64),
		brokenCh: make(chan error, 1),
		closeCh:  make(chan struct{}),
	}

	if err := s.dial(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if err := s.sync(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	s.logState(log.StateEntityConnection, "", "CONNECTED", "")
	return s, nil
}

// dial (re)creates the socket and starts a read loop for it.
func (s *Session) dial() error {
	addr, err := net.ResolveUDPAddr("udp", s.remote)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", s.remote, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.remote, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn
	lost := make(chan struct{})
	s.lost = lost
	s.mu.Unlock()

	s.wg.Add(1)
	go s.readLoop(conn, lost)
	return nil
}

// readLoop receives datagrams for one socket generation and routes
// them: responses and acks to pending exchanges, notifications to the
// observe loop.
func (s *Session) readLoop(conn *net.UDPConn, lost chan struct{}) {
	defer s.wg.Done()

	buf := make([]byte, MaxDatagramSize)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-s.closeCh:
				return
			default:
			}
			s.mu.Lock()
			stale := s.conn != conn
			s.mu.Unlock()
			if !stale {
				s.logError(log.LayerTransport, err, "reading datagram")
				close(lost)
			}
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		s.logFrame(data, log.DirectionIn)

		msg, err := wire.Decode(data)
		if err != nil {
			s.logError(log.LayerWire, err, "decoding datagram")
			s.signalBroken(err)
			continue
		}
		s.logMessage(msg, log.DirectionIn)

		switch msg.Type {
		case wire.TypeResponse, wire.TypeAck:
			s.pendingMu.Lock()
			ch, ok := s.pending[msg.ID]
			s.pendingMu.Unlock()
			if ok {
				select {
				case ch <- msg:
				default:
				}
			}
		case wire.TypeNotify:
			if !s.observing.Load() {
				continue
			}
			select {
			case s.notifyCh <- msg:
			default:
				// Queue full: drop the oldest pending snapshot so the
				// freshest one wins. Each snapshot is complete, so a
				// later one supersedes anything dropped.
				select {
				case <-s.notifyCh:
				default:
				}
				select {
				case s.notifyCh <- msg:
				default:
				}
			}
		}
	}
}

// signalBroken notifies the observe loop of a broken stream.
func (s *Session) signalBroken(err error) {
	select {
	case s.brokenCh <- err:
	default:
	}
}

// exchange sends one request and waits for the matching reply.
func (s *Session) exchange(ctx context.Context, msg *wire.Message, timeout time.Duration) (*wire.Message, error) {
	msg.ID = s.nextID.Add(1)
	data, err := wire.Encode(msg)
	if err != nil {
		return nil, err
	}

	ch := make(chan *wire.Message, 1)
	s.pendingMu.Lock()
	s.pending[msg.ID] = ch
	s.pendingMu.Unlock()
	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, msg.ID)
		s.pendingMu.Unlock()
	}()

	s.mu.Lock()
	conn := s.conn
	closed := s.closed
	s.mu.Unlock()
	if closed || conn == nil {
		return nil, ErrSessionClosed
	}

	s.logFrame(data, log.DirectionOut)
	if _, err := conn.Write(data); err != nil {
		select {
		case <-s.closeCh:
			return nil, ErrSessionClosed
		default:
		}
		return nil, fmt.Errorf("send %s: %w", msg.Op, err)
	}
	s.logMessage(msg, log.DirectionOut)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.closeCh:
		return nil, ErrSessionClosed
	case <-timer.C:
		return nil, fmt.Errorf("%s: no reply within %v", msg.Op, timeout)
	case resp := <-ch:
		return resp, nil
	}
}

// sync performs the session handshake and stores the device session
// token.
func (s *Session) sync(ctx context.Context) error {
	resp, err := s.exchange(ctx, &wire.Message{Type: wire.TypeRequest, Op: wire.OpSync}, s.config.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	if resp.Result != wire.ResultOK || resp.Session == "" {
		return errors.New("handshake rejected by device")
	}

	s.mu.Lock()
	s.token = resp.Session
	s.mu.Unlock()
	return nil
}

// Token returns the device session token from the last handshake.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// RemoteAddr returns the device address this session is bound to.
func (s *Session) RemoteAddr() string {
	return s.remote
}

// FetchSnapshot requests a one-shot status snapshot. Transient
// timeouts are retried with exponential backoff up to the configured
// attempt bound; exhaustion is reported wrapped in ErrFetchFailed.
func (s *Session) FetchSnapshot(ctx context.Context) (wire.Status, error) {
	var lastErr error
	delay := s.config.FetchBackoff

	for attempt := 0; attempt < s.config.FetchAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-s.closeCh:
				timer.Stop()
				return nil, ErrSessionClosed
			case <-timer.C:
			}
			delay *= 2
		}

		resp, err := s.exchange(ctx, &wire.Message{Type: wire.TypeRequest, Op: wire.OpStatus}, s.config.ConnectTimeout)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
				return nil, err
			}
			lastErr = err
			continue
		}
		if resp.Result != wire.ResultOK {
			lastErr = errors.New("device returned error status")
			continue
		}
		return resp.Fields.Clone(), nil
	}

	return nil, fmt.Errorf("%w: %d attempts: %w", ErrFetchFailed, s.config.FetchAttempts, lastErr)
}

// Close releases the session. It is idempotent; an active observe
// stream ends cleanly and pending exchanges fail with ErrSessionClosed.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		conn := s.conn
		s.mu.Unlock()

		close(s.closeCh)
		if conn != nil {
			conn.Close()
		}
		s.logState(log.StateEntityConnection, "CONNECTED", "CLOSED", "")
	})
	s.wg.Wait()
	return nil
}

// isClosed reports whether Close has been called.
func (s *Session) isClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}

// lostChan returns the loss signal of the current socket generation.
func (s *Session) lostChan() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lost
}

// logFrame emits a transport-layer frame event.
func (s *Session) logFrame(data []byte, dir log.Direction) {
	frame := data
	truncated := false
	if len(frame) > maxLogFrameSize {
		frame = frame[:maxLogFrameSize]
		truncated = true
	}
	s.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryMessage,
		RemoteAddr: s.remote,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frame,
			Truncated: truncated,
		},
	})
}

// logMessage emits a wire-layer message event.
func (s *Session) logMessage(msg *wire.Message, dir log.Direction) {
	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	s.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Direction:  dir,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: s.remote,
		Message: &log.MessageEvent{
			Type:   msg.Type,
			ID:     msg.ID,
			Op:     msg.Op,
			Result: msg.Result,
			Keys:   keys,
		},
	})
}

// logState emits a state-change event.
func (s *Session) logState(entity log.StateEntity, oldState, newState, reason string) {
	s.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Direction:  log.DirectionOut,
		Layer:      log.LayerTransport,
		Category:   log.CategoryState,
		RemoteAddr: s.remote,
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// logError emits an error event.
func (s *Session) logError(layer log.Layer, err error, context string) {
	s.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Direction:  log.DirectionIn,
		Layer:      layer,
		Category:   log.CategoryError,
		RemoteAddr: s.remote,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
