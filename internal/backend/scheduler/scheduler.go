package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrRenderPanic wraps a panic raised while producing a thumbnail.
var ErrRenderPanic = errors.New("render panicked")

// Fetcher produces the thumbnail of a filter index; thumbcache.Session
// satisfies it.
type Fetcher interface {
	Get(ctx context.Context, index int) ([]byte, error)
}

// Event reports the outcome of one render request.
type Event struct {
	CellID int
	Index  int
	State  CellState
	Err    error
}

const eventBuffer = 64

// Scheduler moves thumbnail work off the UI loop and applies results back
// on it. Methods without a Post/Do in their body must run on the loop.
type Scheduler struct {
	loop        *UILoop
	pool        *Pool
	fetcher     Fetcher
	placeholder []byte
	events      chan Event
}

// NewScheduler wires a scheduler to its loop, pool and fetcher.
func NewScheduler(loop *UILoop, pool *Pool, fetcher Fetcher, placeholder []byte) *Scheduler {
	return &Scheduler{
		loop:        loop,
		pool:        pool,
		fetcher:     fetcher,
		placeholder: placeholder,
		events:      make(chan Event, eventBuffer),
	}
}

// Events delivers request outcomes. Events are dropped when nobody reads.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// show displays cell: a cell that already requested its image is left
// alone, any other gets the placeholder and a background render.
func (s *Scheduler) show(c *Cell) {
	if c.state != StatePlaceholder {
		return
	}
	c.image = s.placeholder
	c.state = StatePending

	index, generation := c.index, c.generation
	submitted := s.pool.Submit(func(ctx context.Context) {
		data, err := s.fetch(ctx, index)
		s.loop.Post(func() {
			s.complete(c, index, generation, data, err)
		})
	})
	if !submitted {
		slog.Warn("scheduler: pool closed, cell keeps placeholder", "cell", c.id, "index", index)
	}
}

// assign rebinds cell to a new index. A render still in flight for the old
// binding is discarded when it lands.
func (s *Scheduler) assign(c *Cell, index int) {
	c.generation++
	c.index = index
	c.image = nil
	c.state = StatePlaceholder
	c.err = nil
}

func (s *Scheduler) fetch(ctx context.Context, index int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRenderPanic, r)
		}
	}()
	return s.fetcher.Get(ctx, index)
}

func (s *Scheduler) complete(c *Cell, index int, generation uint64, data []byte, err error) {
	if c.generation != generation || c.index != index {
		slog.Debug("scheduler: dropping stale result", "cell", c.id, "index", index, "current_index", c.index)
		s.emit(Event{CellID: c.id, Index: index, State: StateSuperseded, Err: err})
		return
	}
	if err != nil {
		c.err = err
		slog.Warn("scheduler: render failed, cell keeps placeholder", "cell", c.id, "index", index, "error", err)
		s.emit(Event{CellID: c.id, Index: index, State: c.state, Err: err})
		return
	}
	c.image = data
	c.state = StateReady
	s.emit(Event{CellID: c.id, Index: index, State: StateReady})
}

func (s *Scheduler) emit(e Event) {
	select {
	case s.events <- e:
	default:
		slog.Debug("scheduler: event dropped", "cell", e.CellID, "state", e.State.String())
	}
}
