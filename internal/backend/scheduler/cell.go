package scheduler

// CellState is the display state of one grid cell.
type CellState int

const (
	// StatePlaceholder: bound to an index, nothing requested yet.
	StatePlaceholder CellState = iota
	// StatePending: placeholder shown, render requested or failed.
	StatePending
	// StateReady: the rendered thumbnail is shown.
	StateReady
	// StateSuperseded marks a result that arrived for a binding the cell
	// no longer has. It only appears on events, never on a live cell.
	StateSuperseded
)

func (s CellState) String() string {
	switch s {
	case StatePlaceholder:
		return "placeholder"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateSuperseded:
		return "superseded"
	default:
		return "unknown"
	}
}

// Cell is one slot of a filter grid. Its fields belong to the UI loop.
type Cell struct {
	id         int
	index      int
	state      CellState
	image      []byte
	generation uint64
	err        error
}

// CellSnapshot is a copy of a cell taken on the UI loop.
type CellSnapshot struct {
	ID    int
	Index int
	State CellState
	Image []byte
	Err   error
}

func (c *Cell) snapshot() CellSnapshot {
	return CellSnapshot{
		ID:    c.id,
		Index: c.index,
		State: c.state,
		Image: c.image,
		Err:   c.err,
	}
}
