package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior.
type Config struct {
	Enabled    bool
	BufferSize int
	// DropIfFull discards info events when the buffer is full instead of
	// making the request wait. Alerts always wait.
	DropIfFull bool
}

// Stats is a point-in-time view of delivery counters.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	// DroppedByOperation splits Dropped by Event.Operation; events without
	// an operation are keyed "".
	DroppedByOperation map[string]uint64
}

// Dispatcher relays events to a sink on its own goroutine so a slow sink
// never sits on the login or refresh path.
type Dispatcher struct {
	cfg  Config
	sink Sink
	ch   chan Event
	done chan struct{}
	wg   sync.WaitGroup

	delivered atomic.Uint64
	dropped   atomic.Uint64
	dropsMu   sync.Mutex
	dropsByOp map[string]uint64

	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the delivery goroutine. It returns nil when auditing is
// disabled; every Dispatcher method is safe on a nil receiver.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	d := &Dispatcher{
		cfg:       cfg,
		sink:      sink,
		ch:        make(chan Event, max(cfg.BufferSize, 1)),
		done:      make(chan struct{}),
		dropsByOp: make(map[string]uint64),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.ch:
			d.deliver(ev)
		case <-d.done:
			for {
				select {
				case ev := <-d.ch:
					d.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ev Event) {
	d.sink.Emit(context.Background(), ev)
	d.delivered.Add(1)
}

// Emit queues event. An info event meeting a full buffer is dropped when
// DropIfFull is set. Everything else waits for room; if ctx ends first the
// event is counted as dropped.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	select {
	case d.ch <- event:
		return
	case <-d.done:
		return
	default:
	}
	if d.cfg.DropIfFull && !event.alert() {
		d.drop(event)
		return
	}

	select {
	case d.ch <- event:
	case <-d.done:
	case <-ctx.Done():
		d.drop(event)
	}
}

func (d *Dispatcher) drop(ev Event) {
	d.dropped.Add(1)
	d.dropsMu.Lock()
	d.dropsByOp[ev.Operation]++
	d.dropsMu.Unlock()
}

// Close stops accepting events and drains the buffer into the sink.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns the number of events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

// Stats returns delivery counters. A nil dispatcher reports zeros.
func (d *Dispatcher) Stats() Stats {
	if d == nil {
		return Stats{}
	}
	d.dropsMu.Lock()
	byOp := make(map[string]uint64, len(d.dropsByOp))
	for op, n := range d.dropsByOp {
		byOp[op] = n
	}
	d.dropsMu.Unlock()
	return Stats{
		Delivered:          d.delivered.Load(),
		Dropped:            d.dropped.Load(),
		DroppedByOperation: byOp,
	}
}
