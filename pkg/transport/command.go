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

// Commander sends control mutations to a device over its own socket,
// so commands never contend with observe traffic. Commands are
// serialized; each waits for its matching ack before the next is sent.
//
// Commands are not retried automatically. A timeout means the outcome
// is unknown and the caller decides whether resending is safe.
type Commander struct {
	config Config
	id     string // local session ID for log correlation
	remote string

	mu   sync.Mutex // serializes commands and guards conn
	conn *net.UDPConn

	nextID atomic.Uint32

	closeCh   chan struct{}
	closeOnce sync.Once
}

// DialCommander opens a command socket to the device at host.
func DialCommander(host string, config Config) (*Commander, error) {
	config = config.withDefaults()

	remote := net.JoinHostPort(host, strconv.Itoa(config.Port))
	addr, err := net.ResolveUDPAddr("udp", remote)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", remote, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", remote, err)
	}

	return &Commander{
		config:  config,
		id:      uuid.NewString(),
		remote:  remote,
		conn:    conn,
		closeCh: make(chan struct{}),
	}, nil
}

// Set sends one control mutation and waits for the device ack. It
// returns nil on a positive ack, ErrCommandRejected on a negative ack,
// ErrCommandTimeout when no ack arrives within Config.CommandTimeout,
// and ErrSessionClosed after Close.
func (c *Commander) Set(ctx context.Context, key, value string) error {
	msg := &wire.Message{
		Type:   wire.TypeRequest,
		Op:     wire.OpControl,
		Fields: wire.Status{key: value},
	}
	msg.ID = c.nextID.Add(1)

	data, err := wire.Encode(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return ErrSessionClosed
	}

	deadline := time.Now().Add(c.config.CommandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.logFrame(data, log.DirectionOut)
	if _, err := c.conn.Write(data); err != nil {
		return c.failure(ctx, fmt.Errorf("send control: %w", err))
	}
	c.logMessage(msg, log.DirectionOut)

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return c.failure(ctx, err)
	}

	buf := make([]byte, MaxDatagramSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			return c.failure(ctx, err)
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		c.logFrame(frame, log.DirectionIn)

		ack, err := wire.Decode(frame)
		if err != nil {
			// Garbage on the command socket does not fail the command;
			// keep waiting for the ack until the deadline.
			c.logError(log.LayerWire, err, "decoding ack")
			continue
		}
		c.logMessage(ack, log.DirectionIn)

		if ack.Type != wire.TypeAck || ack.ID != msg.ID {
			continue // stray datagram for some other exchange
		}
		if ack.Result != wire.ResultOK {
			return fmt.Errorf("%w: %s", ErrCommandRejected, key)
		}
		return nil
	}
}

// failure maps a low-level command error to the command error surface.
func (c *Commander) failure(ctx context.Context, err error) error {
	select {
	case <-c.closeCh:
		return ErrSessionClosed
	default:
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		if d, ok := ctx.Deadline(); ok && !time.Now().Before(d) {
			return context.DeadlineExceeded
		}
		return fmt.Errorf("%w: no ack within %v", ErrCommandTimeout, c.config.CommandTimeout)
	}
	return err
}

// RemoteAddr returns the device address this commander is bound to.
func (c *Commander) RemoteAddr() string {
	return c.remote
}

// Close releases the command socket. It is idempotent; an in-flight
// Set fails with ErrSessionClosed.
func (c *Commander) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.conn.Close()
	})
	return nil
}

func (c *Commander) isClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Commander) logFrame(data []byte, dir log.Direction) {
	frame := data
	truncated := false
	if len(frame) > maxLogFrameSize {
		frame = frame[:maxLogFrameSize]
		truncated = true
	}
	c.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.id,
		Direction:  dir,
		Layer:      log.LayerTransport,
		Category:   log.CategoryMessage,
		RemoteAddr: c.remote,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      frame,
			Truncated: truncated,
		},
	})
}

func (c *Commander) logMessage(msg *wire.Message, dir log.Direction) {
	keys := make([]string, 0, len(msg.Fields))
	for k := range msg.Fields {
		keys = append(keys, k)
	}
	c.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.id,
		Direction:  dir,
		Layer:      log.LayerWire,
		Category:   log.CategoryMessage,
		RemoteAddr: c.remote,
		Message: &log.MessageEvent{
			Type:   msg.Type,
			ID:     msg.ID,
			Op:     msg.Op,
			Result: msg.Result,
			Keys:   keys,
		},
	})
}

func (c *Commander) logError(layer log.Layer, err error, context string) {
	c.config.Logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.id,
		Direction:  log.DirectionIn,
		Layer:      layer,
		Category:   log.CategoryError,
		RemoteAddr: c.remote,
		Error: &log.ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}
