package airctrl

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mertbulan/philips-airpurifier/pkg/transport"
	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

func testStatus() wire.Status {
	return wire.Status{
		KeyDeviceID: "001",
		KeyModelID:  "AC4236",
		"pwr":       "1",
		"mode":      "M",
		"om":        "2",
		"aqil":      "50",
	}
}

func testTransportConfig(srv *transport.Server) transport.Config {
	return transport.Config{
		Port:                srv.Port(),
		ConnectTimeout:      500 * time.Millisecond,
		FetchBackoff:        10 * time.Millisecond,
		CommandTimeout:      200 * time.Millisecond,
		ResubscribeInitial:  10 * time.Millisecond,
		ResubscribeMax:      50 * time.Millisecond,
		ResubscribeAttempts: 5,
	}
}

func newTestDevice(t *testing.T) *transport.Server {
	t.Helper()
	srv, err := transport.NewServer(transport.ServerConfig{Status: testStatus()})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })
	return srv
}

func createTestClient(t *testing.T, srv *transport.Server) *Client {
	t.Helper()
	c, err := Create(context.Background(), srv.Host(), Config{
		Transport: testTransportConfig(srv),
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func recvUpdate(t *testing.T, ch <-chan wire.Status) wire.Status {
	t.Helper()
	select {
	case status, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return status
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return nil
	}
}

func TestCreateCapturesIdentityAndStatus(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	id := c.Identity()
	assert.Equal(t, "001", id.DeviceID)
	assert.Equal(t, "AC4236", id.ModelID)
	assert.Equal(t, "AC4236-001", id.UniqueID())

	status := c.CurrentStatus()
	assert.Equal(t, "1", status["pwr"])
	assert.Equal(t, "M", status["mode"])
	assert.Equal(t, "2", status["om"])
}

func TestUniqueIDPartialIdentity(t *testing.T) {
	assert.Equal(t, "001", Identity{DeviceID: "001"}.UniqueID())
	assert.Equal(t, "AC4236", Identity{ModelID: "AC4236"}.UniqueID())
	assert.Equal(t, "", Identity{}.UniqueID())
}

func TestCreateNotReadyWhenSilent(t *testing.T) {
	srv := newTestDevice(t)
	srv.SetMute(true)

	cfg := testTransportConfig(srv)
	cfg.ConnectTimeout = 50 * time.Millisecond

	_, err := Create(context.Background(), srv.Host(), Config{Transport: cfg})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCreateNotReadyWhenFetchFails(t *testing.T) {
	srv := newTestDevice(t)

	cfg := testTransportConfig(srv)
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.FetchAttempts = 2
	srv.FailStatus(3)

	_, err := Create(context.Background(), srv.Host(), Config{Transport: cfg})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, transport.ErrFetchFailed)
}

func TestCreateNotReadyWithoutDeviceID(t *testing.T) {
	srv, err := transport.NewServer(transport.ServerConfig{
		Status: wire.Status{"pwr": "1"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	_, err = Create(context.Background(), srv.Host(), Config{
		Transport: testTransportConfig(srv),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCurrentStatusReturnsCopy(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	first := c.CurrentStatus()
	first["pwr"] = "mutated"

	assert.Equal(t, "1", c.CurrentStatus()["pwr"])
}

func TestFetchStatusUpdatesCache(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	srv.SetStatus("aqil", "75")

	status, err := c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "75", status["aqil"])
	assert.Equal(t, "75", c.CurrentStatus()["aqil"])
}

func TestStatusStreamUpdatesCache(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	ch, err := c.StatusStream(context.Background())
	require.NoError(t, err)

	srv.SetStatus("aqil", "25")
	update := recvUpdate(t, ch)
	assert.Equal(t, "25", update["aqil"])
	assert.Equal(t, "25", c.CurrentStatus()["aqil"])
}

func TestControlObservedThroughStream(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	ch, err := c.StatusStream(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.SendControl(context.Background(), "pwr", "0"))

	update := recvUpdate(t, ch)
	assert.Equal(t, "0", update["pwr"])
}

func TestSendControlRejected(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	srv.RejectNextControl(1)

	err := c.SendControl(context.Background(), "om", "2")
	assert.ErrorIs(t, err, transport.ErrCommandRejected)
}

func TestClientUsableAfterCommandTimeout(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	srv.DropAcks(true)
	err := c.SendControl(context.Background(), "pwr", "0")
	assert.ErrorIs(t, err, transport.ErrCommandTimeout)

	// Status and later commands keep working on their own channels.
	srv.DropAcks(false)
	_, err = c.FetchStatus(context.Background())
	require.NoError(t, err)
	assert.NoError(t, c.SendControl(context.Background(), "om", "1"))
}

func TestCloseMidConsumption(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	ch, err := c.StatusStream(context.Background())
	require.NoError(t, err)

	srv.Push()
	recvUpdate(t, ch)

	require.NoError(t, c.Close())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				assert.NoError(t, c.StreamErr())
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after client Close")
		}
	}
}

func TestClosedClientErrors(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)
	require.NoError(t, c.Close())

	_, err := c.FetchStatus(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	err = c.SendControl(context.Background(), "pwr", "1")
	assert.ErrorIs(t, err, ErrClosed)

	_, err = c.StatusStream(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMetricsCollectors(t *testing.T) {
	srv := newTestDevice(t)
	c := createTestClient(t, srv)

	assert.Len(t, c.MetricsCollectors(), 3)
}
