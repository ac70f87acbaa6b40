package core

import (
	"context"
	"time"

	"github.com/jo-hoe/gofilter/internal/backend/database"
	"github.com/jo-hoe/gofilter/internal/backend/scheduler"
	"github.com/jo-hoe/gofilter/internal/backend/thumbcache"
)

const settlePollInterval = 50 * time.Millisecond

// FilterSession is one record's filter grid on screen: one cell per catalog
// entry, filled in the background from the thumbnail cache.
type FilterSession struct {
	recordID string
	cache    *thumbcache.Session
	sched    *scheduler.Scheduler
	grid     *scheduler.Grid
}

func newFilterSession(service *CoreService, record *database.PhotoRecord) (*FilterSession, error) {
	cacheSession := service.cache.Session(record.ID, record.Thumbnail)
	sched := scheduler.NewScheduler(service.loop, service.pool, cacheSession, service.placeholder)
	grid := scheduler.NewGrid(sched, service.catalog.Count())
	if err := grid.ShowAll(); err != nil {
		return nil, err
	}
	return &FilterSession{
		recordID: record.ID,
		cache:    cacheSession,
		sched:    sched,
		grid:     grid,
	}, nil
}

func (s *FilterSession) RecordID() string {
	return s.recordID
}

// Namespace is the thumbnail cache namespace the session reads and fills.
func (s *FilterSession) Namespace() string {
	return s.cache.Namespace()
}

func (s *FilterSession) Len() int {
	return s.grid.Len()
}

func (s *FilterSession) Cells(ctx context.Context) ([]scheduler.CellSnapshot, error) {
	return s.grid.Snapshot(ctx)
}

func (s *FilterSession) Cell(ctx context.Context, index int) (scheduler.CellSnapshot, error) {
	return s.grid.Cell(ctx, index)
}

// Show brings a cell into view again, requesting its thumbnail if needed.
func (s *FilterSession) Show(index int) error {
	return s.grid.Show(index)
}

// Wait blocks until every cell is ready or has failed.
func (s *FilterSession) Wait(ctx context.Context) ([]scheduler.CellSnapshot, error) {
	ticker := time.NewTicker(settlePollInterval)
	defer ticker.Stop()
	for {
		cells, err := s.grid.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		if settled(cells) {
			return cells, nil
		}
		select {
		case <-ctx.Done():
			return cells, ctx.Err()
		case <-s.sched.Events():
		case <-ticker.C:
		}
	}
}

func settled(cells []scheduler.CellSnapshot) bool {
	for _, c := range cells {
		if c.State != scheduler.StateReady && c.Err == nil {
			return false
		}
	}
	return true
}
