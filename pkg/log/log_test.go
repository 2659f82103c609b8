package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mertbulan/philips-airpurifier/pkg/wire"
)

func sampleEvent() Event {
	return Event{
		Timestamp:  time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC),
		SessionID:  "b6fa62c8-2c17-4f9e-9f1c-6dc33b6a7701",
		Direction:  DirectionIn,
		Layer:      LayerWire,
		Category:   CategoryMessage,
		RemoteAddr: "10.0.0.5:5683",
		DeviceID:   "AC4236-001",
		Message: &MessageEvent{
			Type: wire.TypeNotify,
			ID:   42,
			Keys: []string{"mode", "om", "pwr"},
		},
	}
}

func TestEventRoundTrip(t *testing.T) {
	want := sampleEvent()

	data, err := EncodeEvent(want)
	if err != nil {
		t.Fatalf("EncodeEvent() error: %v", err)
	}
	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent() error: %v", err)
	}

	if !got.Timestamp.Equal(want.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
	}
	if got.SessionID != want.SessionID || got.Direction != want.Direction ||
		got.Layer != want.Layer || got.Category != want.Category ||
		got.RemoteAddr != want.RemoteAddr || got.DeviceID != want.DeviceID {
		t.Errorf("envelope mismatch: got %+v", got)
	}
	if got.Message == nil {
		t.Fatal("Message payload missing after round trip")
	}
	if got.Message.Type != wire.TypeNotify || got.Message.ID != 42 {
		t.Errorf("Message = %+v", got.Message)
	}
	if len(got.Message.Keys) != 3 {
		t.Errorf("Message.Keys = %v", got.Message.Keys)
	}
}

func TestEventStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	events := []Event{
		sampleEvent(),
		{
			Timestamp: time.Now().UTC(),
			SessionID: "b6fa62c8-2c17-4f9e-9f1c-6dc33b6a7701",
			Direction: DirectionOut,
			Layer:     LayerSession,
			Category:  CategoryState,
			StateChange: &StateChangeEvent{
				Entity:   StateEntityObserve,
				OldState: "STREAMING",
				NewState: "RESUBSCRIBING",
				Reason:   "malformed frame",
			},
		},
	}
	for _, e := range events {
		if err := enc.Encode(e); err != nil {
			t.Fatalf("Encode() error: %v", err)
		}
	}

	got, err := ReadEvents(&buf)
	if err != nil {
		t.Fatalf("ReadEvents() error: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("ReadEvents() returned %d events, want %d", len(got), len(events))
	}
	if got[1].StateChange == nil || got[1].StateChange.Entity != StateEntityObserve {
		t.Errorf("second event = %+v", got[1])
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.cborlog")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error: %v", err)
	}
	fl.Log(sampleEvent())
	fl.Log(sampleEvent())
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	// Idempotent close; late logs are dropped.
	if err := fl.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	fl.Log(sampleEvent())

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer f.Close()
	events, err := ReadEvents(f)
	if err != nil {
		t.Fatalf("ReadEvents() error: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	adapter.Log(sampleEvent())

	out := buf.String()
	for _, want := range []string{"session_id", "NOTIFY", "device_id=AC4236-001"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("slog output missing %q: %s", want, out)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	var l Logger = NoopLogger{}
	l.Log(sampleEvent()) // must not panic
}
