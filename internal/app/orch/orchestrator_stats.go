package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Chat/internal/domain"
)

const (
	statsActiveWindow = 24 * time.Hour
	statsWeekWindow   = 7 * 24 * time.Hour
)

// Stats is the admin dashboard view: stored totals plus live presence.
type Stats struct {
	domain.Stats
	Connections int `json:"connections"`
	Members     int `json:"members"`
}

func (o *Orchestrator) Stats(ctx context.Context) (Stats, error) {
	var out Stats
	if o.Store != nil {
		now := o.now()
		st, err := o.Store.Stats(ctx, now.Add(-statsActiveWindow), now.Add(-statsWeekWindow))
		if err != nil {
			return Stats{}, fmt.Errorf("stats: %w", err)
		}
		out.Stats = st
	}
	if out.Week == nil {
		out.Week = []domain.DayCount{}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	out.Connections = o.Registry.Count()
	for _, n := range o.OnlineCounts() {
		out.Members += n
	}
	return out, nil
}
