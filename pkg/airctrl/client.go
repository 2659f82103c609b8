package airctrl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mertbulan/philips-airpurifier/pkg/log"
	"github.com/mertbulan/philips-airpurifier/pkg/transport"
	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

// Well-known identity keys in device status.
const (
	// KeyDeviceID holds the device's unique hardware identifier.
	KeyDeviceID = "DeviceId"

	// KeyModelID holds the device's model identifier.
	KeyModelID = "modelid"
)

var (
	// ErrNotReady indicates the device could not be initialized; the
	// caller may retry later.
	ErrNotReady = errors.New("device not ready")

	// ErrClosed indicates the client was closed.
	ErrClosed = errors.New("client closed")
)

// Identity identifies one physical device. It is captured once from
// the first status fetch and never changes for the client's lifetime.
type Identity struct {
	DeviceID string
	ModelID  string
}

// UniqueID returns a stable identifier combining model and device ID,
// e.g. "AC4236-8f1c09a2".
func (i Identity) UniqueID() string {
	switch {
	case i.ModelID == "":
		return i.DeviceID
	case i.DeviceID == "":
		return i.ModelID
	default:
		return i.ModelID + "-" + i.DeviceID
	}
}

// Config configures a Client.
type Config struct {
	// Transport tunes the underlying session and command channel.
	Transport transport.Config

	// Logger receives structured driver logs. Nil disables logging.
	Logger *slog.Logger
}

// Client is the device facade. It owns one session for status and
// observation plus one command channel for mutations, and caches the
// last seen status snapshot. A Client returned by Create is fully
// initialized: its identity is known and CurrentStatus always has a
// snapshot to return.
type Client struct {
	host      string
	session   *transport.Session
	commander *transport.Commander
	logger    *slog.Logger
	metrics   *metrics
	identity  Identity

	current atomic.Value // wire.Status, last seen snapshot

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Create connects to the purifier at host, performs the handshake and
// an initial status fetch, and captures the device identity. Any
// failure is reported wrapped in ErrNotReady; no half-initialized
// client is ever returned.
func Create(ctx context.Context, host string, config Config) (*Client, error) {
	c := &Client{
		host:    host,
		logger:  config.Logger,
		metrics: newMetrics(),
		closeCh: make(chan struct{}),
	}

	tc := config.Transport
	if tc.Logger == nil && config.Logger != nil {
		tc.Logger = log.NewSlogAdapter(config.Logger)
	}
	userResubscribe := tc.OnResubscribe
	tc.OnResubscribe = func(attempt int, delay time.Duration) {
		c.metrics.resubscribes.Inc()
		c.logWarn("observe stream recovering",
			slog.Int("attempt", attempt), slog.Duration("delay", delay))
		if userResubscribe != nil {
			userResubscribe(attempt, delay)
		}
	}

	session, err := transport.Open(ctx, host, tc)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to %s: %w", ErrNotReady, host, err)
	}
	c.session = session

	status, err := session.FetchSnapshot(ctx)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: initial status from %s: %w", ErrNotReady, host, err)
	}
	if status[KeyDeviceID] == "" {
		session.Close()
		return nil, fmt.Errorf("%w: %s reported no device ID", ErrNotReady, host)
	}
	c.storeStatus(status)
	c.identity = Identity{
		DeviceID: status[KeyDeviceID],
		ModelID:  status[KeyModelID],
	}

	commander, err := transport.DialCommander(host, tc)
	if err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: connecting to %s: %w", ErrNotReady, host, err)
	}
	c.commander = commander

	c.logInfo("connected",
		slog.String("host", host),
		slog.String("device", c.identity.UniqueID()),
		slog.String("session", session.Token()))
	return c, nil
}

// Identity returns the device identity captured at initialization.
func (c *Client) Identity() Identity {
	return c.identity
}

// FetchStatus requests a fresh status snapshot from the device and
// updates the cache.
func (c *Client) FetchStatus(ctx context.Context) (wire.Status, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	status, err := c.session.FetchSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	c.storeStatus(status)
	return status, nil
}

// CurrentStatus returns a copy of the most recently seen status
// snapshot: the latest stream delivery, or the initial fetch result if
// observation has not started.
func (c *Client) CurrentStatus() wire.Status {
	return c.current.Load().(wire.Status).Clone()
}

// StatusStream subscribes to device push updates. Every delivered
// snapshot also refreshes the cache, so CurrentStatus tracks the
// stream. The channel closes when ctx is cancelled, the client is
// closed, or the stream fails terminally; StreamErr tells which.
func (c *Client) StatusStream(ctx context.Context) (<-chan wire.Status, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	in, err := c.session.Observe(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan wire.Status)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(out)
		for status := range in {
			c.storeStatus(status)
			select {
			case out <- status:
			case <-ctx.Done():
				return
			case <-c.closeCh:
				return
			}
		}
		if err := c.session.ObserveErr(); err != nil {
			c.logWarn("status stream failed", slog.String("error", err.Error()))
		}
	}()
	return out, nil
}

// StreamErr reports why the status stream ended; nil means a clean
// shutdown.
func (c *Client) StreamErr() error {
	return c.session.ObserveErr()
}

// SendControl sends one control mutation and waits for the device ack.
// The resulting state change arrives through the status stream; the
// cache is not updated optimistically.
func (c *Client) SendControl(ctx context.Context, key, value string) error {
	if c.isClosed() {
		return ErrClosed
	}
	err := c.commander.Set(ctx, key, value)
	c.metrics.commands.WithLabelValues(commandResult(err)).Inc()
	if err != nil {
		c.logWarn("control failed",
			slog.String("key", key), slog.String("error", err.Error()))
		return fmt.Errorf("set %s: %w", key, err)
	}
	c.logInfo("control acked", slog.String("key", key), slog.String("value", value))
	return nil
}

// Host returns the device host this client is bound to.
func (c *Client) Host() string {
	return c.host
}

// Close releases both channels to the device. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		c.commander.Close()
		c.session.Close()
		c.logInfo("closed", slog.String("host", c.host))
	})
	c.wg.Wait()
	return nil
}

func (c *Client) isClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *Client) storeStatus(status wire.Status) {
	c.current.Store(status.Clone())
	c.metrics.snapshots.Inc()
}

func commandResult(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, transport.ErrCommandRejected):
		return resultRejected
	case errors.Is(err, transport.ErrCommandTimeout):
		return resultTimeout
	default:
		return resultError
	}
}

func (c *Client) logInfo(msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, attrs...)
}

func (c *Client) logWarn(msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}
