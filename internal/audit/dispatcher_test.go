package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordingSink keeps every delivered event.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(_ context.Context, ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

// stalledDispatcher returns a dispatcher whose sink holds the first event
// until release is called, with the one-slot buffer already full.
func stalledDispatcher(t *testing.T, dropIfFull bool) (d *Dispatcher, sink *recordingSink, release func()) {
	t.Helper()
	sink = &recordingSink{}
	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	first := true
	d = NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: dropIfFull}, SinkFunc(func(ctx context.Context, ev Event) {
		if first {
			first = false
			close(entered)
			<-gate
		}
		sink.Emit(ctx, ev)
	}))
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(func() {
		release()
		d.Close()
	})

	d.Emit(context.Background(), Event{EventType: "held", Operation: "login"})
	<-entered
	d.Emit(context.Background(), Event{EventType: "queued", Operation: "login"})
	return d, sink, release
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &recordingSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	if d.Dropped() != 0 || d.Stats().Delivered != 0 || d.Stats().DroppedByOperation != nil {
		t.Fatal("nil dispatcher must report zeros")
	}
}

func TestDropIfFullDropsInfoAndCountsByOperation(t *testing.T) {
	d, sink, release := stalledDispatcher(t, true)

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "refresh_failure", Operation: "refresh"})
	d.Emit(context.Background(), Event{EventType: "refresh_failure", Operation: "refresh"})
	d.Emit(context.Background(), Event{EventType: "logout", Operation: "logout"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("info events must not wait for a full buffer")
	}

	stats := d.Stats()
	if stats.Dropped != 3 {
		t.Fatalf("expected 3 drops, got %d", stats.Dropped)
	}
	if stats.DroppedByOperation["refresh"] != 2 || stats.DroppedByOperation["logout"] != 1 {
		t.Fatalf("unexpected per-operation drops %v", stats.DroppedByOperation)
	}

	release()
	d.Close()
	if got := strings.Join(sink.types(), ","); got != "held,queued" {
		t.Fatalf("unexpected delivery order %s", got)
	}
	if d.Stats().Delivered != 2 {
		t.Fatalf("expected 2 delivered, got %d", d.Stats().Delivered)
	}
}

func TestAlertWaitsForRoomEvenWithDropIfFull(t *testing.T) {
	d, sink, release := stalledDispatcher(t, true)

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "refresh_reuse_detected", Operation: "refresh", Severity: SeverityAlert})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("alert must wait for buffer space")
	case <-time.After(100 * time.Millisecond):
	}

	release()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not queued after the sink resumed")
	}

	d.Close()
	if d.Dropped() != 0 {
		t.Fatalf("alert must not be dropped, got %d drops", d.Dropped())
	}
	types := sink.types()
	if len(types) != 3 || types[2] != "refresh_reuse_detected" {
		t.Fatalf("unexpected deliveries %v", types)
	}
}

func TestBlockingModeWaitsUntilSpace(t *testing.T) {
	d, _, release := stalledDispatcher(t, false)

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "login_failure", Operation: "login"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(100 * time.Millisecond):
	}

	release()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
}

func TestBlockedEmitCountsDropWhenContextEnds(t *testing.T) {
	d, _, _ := stalledDispatcher(t, false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	d.Emit(ctx, Event{EventType: "session_revoked", Operation: "refresh", Severity: SeverityAlert})
	if time.Since(start) > time.Second {
		t.Fatal("expected emit to return once the context is done")
	}
	if got := d.Stats().DroppedByOperation["refresh"]; got != 1 {
		t.Fatalf("expected the abandoned event counted under refresh, got %d", got)
	}
}

func TestEmitDefaultsSeverityToInfo(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{EventType: "login_success"})
	d.Close()

	if len(sink.events) != 1 || sink.events[0].Severity != SeverityInfo {
		t.Fatalf("unexpected events %+v", sink.events)
	}
}

func TestCloseDrainsBufferedEvents(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "e"})
	}
	d.Close()

	if got := len(sink.types()); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
	if d.Stats().Delivered != 10 {
		t.Fatalf("expected delivered counter 10, got %d", d.Stats().Delivered)
	}
}

func TestCloseIdempotentAndEmitAfterCloseIgnored(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4, DropIfFull: true}, sink)

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "e2"})

	if got := sink.types(); len(got) != 1 || got[0] != "e1" {
		t.Fatalf("unexpected deliveries %v", got)
	}
	if d.Dropped() != 0 {
		t.Fatal("emit after close is ignored, not dropped")
	}
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), Event{
		Timestamp: time.Unix(1_700_000_000, 0).UTC(),
		EventType: "refresh_reuse_detected",
		Severity:  SeverityAlert,
		Operation: "refresh",
		UserID:    "u1",
		RequestID: "req-1",
	})
	sink.Emit(context.Background(), Event{EventType: "logout", Severity: SeverityInfo})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if first.Severity != SeverityAlert || first.RequestID != "req-1" || first.Operation != "refresh" {
		t.Fatalf("unexpected decoded event %+v", first)
	}
	if strings.Contains(lines[1], "user_id") || strings.Contains(lines[1], "request_id") {
		t.Fatalf("empty fields must be omitted: %s", lines[1])
	}

	// A sink without a writer ignores events.
	NewJSONWriterSink(nil).Emit(context.Background(), Event{EventType: "ignored"})
}

func TestChannelSinkRespectsContext(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), Event{EventType: "e1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, Event{EventType: "e2"})

	if ev := <-sink.Events(); ev.EventType != "e1" {
		t.Fatalf("unexpected event %q", ev.EventType)
	}
	select {
	case ev := <-sink.Events():
		t.Fatalf("cancelled emit must not deliver, got %q", ev.EventType)
	default:
	}
}
