package scheduler

import (
	"context"
	"fmt"
)

// Grid is a fixed set of cells driven by one scheduler. Every method hands
// its work to the UI loop, so a Grid is safe to use from any goroutine.
type Grid struct {
	sched *Scheduler
	cells []*Cell
}

// NewGrid creates count cells bound to indices 0..count-1.
func NewGrid(sched *Scheduler, count int) *Grid {
	cells := make([]*Cell, count)
	for i := range cells {
		cells[i] = &Cell{id: i, index: i}
	}
	return &Grid{sched: sched, cells: cells}
}

// Len returns the number of cells.
func (g *Grid) Len() int {
	return len(g.cells)
}

// Show brings one cell into view.
func (g *Grid) Show(cellID int) error {
	c, err := g.cell(cellID)
	if err != nil {
		return err
	}
	if !g.sched.loop.Post(func() { g.sched.show(c) }) {
		return ErrLoopStopped
	}
	return nil
}

// ShowAll brings every cell into view in order.
func (g *Grid) ShowAll() error {
	if !g.sched.loop.Post(func() {
		for _, c := range g.cells {
			g.sched.show(c)
		}
	}) {
		return ErrLoopStopped
	}
	return nil
}

// Assign rebinds a cell to another filter index.
func (g *Grid) Assign(cellID, index int) error {
	c, err := g.cell(cellID)
	if err != nil {
		return err
	}
	if !g.sched.loop.Post(func() { g.sched.assign(c, index) }) {
		return ErrLoopStopped
	}
	return nil
}

// Snapshot copies every cell on the UI loop. The copy is handed over on a
// buffered channel, so a task still queued after ctx ends writes nothing
// the caller reads.
func (g *Grid) Snapshot(ctx context.Context) ([]CellSnapshot, error) {
	result := make(chan []CellSnapshot, 1)
	err := g.sched.loop.Do(ctx, func() {
		out := make([]CellSnapshot, len(g.cells))
		for i, c := range g.cells {
			out[i] = c.snapshot()
		}
		result <- out
	})
	if err != nil {
		return nil, err
	}
	return <-result, nil
}

// Cell copies one cell on the UI loop.
func (g *Grid) Cell(ctx context.Context, cellID int) (CellSnapshot, error) {
	c, err := g.cell(cellID)
	if err != nil {
		return CellSnapshot{}, err
	}
	result := make(chan CellSnapshot, 1)
	if err := g.sched.loop.Do(ctx, func() { result <- c.snapshot() }); err != nil {
		return CellSnapshot{}, err
	}
	return <-result, nil
}

func (g *Grid) cell(cellID int) (*Cell, error) {
	if cellID < 0 || cellID >= len(g.cells) {
		return nil, fmt.Errorf("cell %d not in grid of %d", cellID, len(g.cells))
	}
	return g.cells[cellID], nil
}
