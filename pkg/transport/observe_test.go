package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

func recvSnapshot(t *testing.T, ch <-chan wire.Status) wire.Status {
	t.Helper()
	select {
	case status, ok := <-ch:
		require.True(t, ok, "stream closed unexpectedly")
		return status
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return nil
	}
}

func waitClosed(t *testing.T, ch <-chan wire.Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestObserveDeliversSnapshots(t *testing.T) {
	srv := newTestServer(t, wire.Status{"pwr": "1", "om": "1"})
	s := openTestSession(t, srv)

	ch, err := s.Observe(context.Background())
	require.NoError(t, err)

	srv.Push()
	status := recvSnapshot(t, ch)
	assert.Equal(t, "1", status["pwr"])

	srv.SetStatus("om", "2")
	status = recvSnapshot(t, ch)
	assert.Equal(t, "2", status["om"])
}

func TestObserveSingleStream(t *testing.T) {
	srv := newTestServer(t, nil)
	s := openTestSession(t, srv)

	_, err := s.Observe(context.Background())
	require.NoError(t, err)

	_, err = s.Observe(context.Background())
	assert.ErrorIs(t, err, ErrObserveActive)
}

func TestObserveDropsDuplicates(t *testing.T) {
	srv := newTestServer(t, wire.Status{"aqil": "50"})
	s := openTestSession(t, srv)

	ch, err := s.Observe(context.Background())
	require.NoError(t, err)

	srv.Push()
	recvSnapshot(t, ch)

	// A replayed notification carries the same sequence number and must
	// not reach the consumer; the next fresh push must.
	srv.PushDuplicate()
	srv.SetStatus("aqil", "25")

	status := recvSnapshot(t, ch)
	assert.Equal(t, "25", status["aqil"])
}

func TestObserveDropsDuplicatesAcrossResubscribe(t *testing.T) {
	srv := newTestServer(t, wire.Status{"aqil": "50"})
	s := openTestSession(t, srv)

	ch, err := s.Observe(context.Background())
	require.NoError(t, err)

	srv.Push()
	recvSnapshot(t, ch)

	// A corrupt frame forces a re-subscription on the same device
	// session. The replayed notification from before the gap carries an
	// already delivered sequence number and must not surface again.
	subscribed := srv.SubscribeCount()
	srv.PushMalformed()
	require.Eventually(t, func() bool {
		return srv.SubscribeCount() > subscribed
	}, 3*time.Second, 10*time.Millisecond)

	srv.PushDuplicate()
	srv.SetStatus("aqil", "25")

	status := recvSnapshot(t, ch)
	assert.Equal(t, "25", status["aqil"])
	assert.NoError(t, s.ObserveErr())
}

func TestObserveRecoversFromMalformedFrame(t *testing.T) {
	srv := newTestServer(t, wire.Status{"pwr": "1"})
	s := openTestSession(t, srv)

	ch, err := s.Observe(context.Background())
	require.NoError(t, err)

	srv.Push()
	recvSnapshot(t, ch)

	srv.PushMalformed()

	// The stream re-subscribes behind the scenes and keeps delivering.
	require.Eventually(t, func() bool {
		srv.SetStatus("pwr", "0")
		select {
		case status, ok := <-ch:
			return ok && status["pwr"] == "0"
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}

func TestObserveSurvivesDeviceRestart(t *testing.T) {
	srv := newTestServer(t, wire.Status{"pwr": "1"})
	s := openTestSession(t, srv)

	ch, err := s.Observe(context.Background())
	require.NoError(t, err)

	srv.Push()
	recvSnapshot(t, ch)
	oldToken := s.Token()

	// The restart push carries a new session token and a reset
	// sequence; the stream re-syncs and delivers without a gap.
	srv.Restart()
	recvSnapshot(t, ch)

	require.Eventually(t, func() bool {
		return s.Token() != oldToken && s.Token() == srv.Token()
	}, 2*time.Second, 20*time.Millisecond)

	srv.SetStatus("pwr", "0")
	status := recvSnapshot(t, ch)
	assert.Equal(t, "0", status["pwr"])
	assert.NoError(t, s.ObserveErr())
}

func TestObserveTerminalFailure(t *testing.T) {
	srv := newTestServer(t, wire.Status{"pwr": "1"})

	cfg := testConfig()
	cfg.Port = srv.Port()
	cfg.ConnectTimeout = 50 * time.Millisecond
	cfg.ResubscribeAttempts = 3

	var attempts int
	cfg.OnResubscribe = func(attempt int, delay time.Duration) { attempts = attempt }

	s, err := Open(context.Background(), srv.Host(), cfg)
	require.NoError(t, err)
	defer s.Close()

	ch, err := s.Observe(context.Background())
	require.NoError(t, err)

	// The device goes silent, then a corrupt frame breaks the stream.
	// Every recovery attempt times out and the stream ends terminally.
	srv.SetMute(true)
	srv.PushMalformed()

	waitClosed(t, ch)
	assert.ErrorIs(t, s.ObserveErr(), ErrObserveFailed)
	assert.Equal(t, 3, attempts)
}

func TestObserveCleanCloseOnCancel(t *testing.T) {
	srv := newTestServer(t, nil)
	s := openTestSession(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Observe(ctx)
	require.NoError(t, err)

	cancel()
	waitClosed(t, ch)
	assert.NoError(t, s.ObserveErr())
}

func TestObserveCleanCloseOnSessionClose(t *testing.T) {
	srv := newTestServer(t, wire.Status{"pwr": "1"})
	s := openTestSession(t, srv)

	ch, err := s.Observe(context.Background())
	require.NoError(t, err)

	srv.Push()
	recvSnapshot(t, ch)

	require.NoError(t, s.Close())
	waitClosed(t, ch)
	assert.NoError(t, s.ObserveErr())
}
