// Package scoreboardsvc implements scoreboard.Publisher on Redis, or in memory when no Redis
// URL is configured.
package scoreboardsvc

import (
	"context"
	"sync"

	"github.com/trezcool/pensamiento/core/scoreboard"
)

type MemoryPublisher struct {
	mu     sync.RWMutex
	size   int
	events map[int][]scoreboard.Event // {activityID: events, oldest first}
}

var _ scoreboard.Publisher = (*MemoryPublisher)(nil)

// NewMemoryPublisher keeps the last size events of every activity.
func NewMemoryPublisher(size int) *MemoryPublisher {
	if size <= 0 {
		size = scoreboard.DefaultRecentSize
	}
	return &MemoryPublisher{size: size, events: make(map[int][]scoreboard.Event)}
}

func (p *MemoryPublisher) Publish(ctx context.Context, evt scoreboard.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	events := append(p.events[evt.ActivityID], evt)
	if len(events) > p.size {
		events = events[len(events)-p.size:]
	}
	p.events[evt.ActivityID] = events
	return nil
}

func (p *MemoryPublisher) Recent(_ context.Context, activityID, limit int) ([]scoreboard.Event, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	events := p.events[activityID]
	if limit <= 0 || limit > len(events) {
		limit = len(events)
	}
	recent := make([]scoreboard.Event, 0, limit)
	for i := len(events) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, events[i])
	}
	return recent, nil
}
