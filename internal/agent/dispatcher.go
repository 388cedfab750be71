package agent

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/aicq-agent/internal/metrics"
	"github.com/eldtechnologies/aicq-agent/internal/models"
)

// Handler processes one event.
type Handler func(ctx context.Context, ev models.Event)

// Dispatcher serialises events per room. Each room with pending events
// owns one goroutine that exits once its queue drains.
type Dispatcher struct {
	ctx     context.Context
	handle  Handler
	buffer  int
	logger  zerolog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	queues  map[string]chan models.Event
	stopped bool
}

// NewDispatcher creates a dispatcher whose handlers run under ctx.
// buffer is the per-room queue length.
func NewDispatcher(ctx context.Context, handle Handler, buffer int, logger zerolog.Logger) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	return &Dispatcher{
		ctx:    ctx,
		handle: handle,
		buffer: buffer,
		logger: logger.With().Str("component", "dispatcher").Logger(),
		queues: make(map[string]chan models.Event),
	}
}

// Submit queues ev behind earlier events of the same room. It returns
// false when the room's queue is full or the dispatcher is stopped.
func (d *Dispatcher) Submit(ev models.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || d.ctx.Err() != nil {
		return false
	}

	q, ok := d.queues[ev.RoomID]
	if !ok {
		q = make(chan models.Event, d.buffer)
		d.queues[ev.RoomID] = q
		d.wg.Add(1)
		go d.run(ev.RoomID, q)
	}

	select {
	case q <- ev:
		return true
	default:
		metrics.EventsSkipped.WithLabelValues("queue full").Inc()
		d.logger.Warn().Str("room_id", ev.RoomID).Msg("room queue full, dropping event")
		return false
	}
}

func (d *Dispatcher) run(room string, q chan models.Event) {
	defer d.wg.Done()
	for {
		select {
		case ev := <-q:
			d.handle(d.ctx, ev)
			continue
		default:
		}

		d.mu.Lock()
		if len(q) == 0 {
			delete(d.queues, room)
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

// Wait stops accepting events and blocks until every queued event has
// been handled.
func (d *Dispatcher) Wait() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.wg.Wait()
}
