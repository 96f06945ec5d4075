package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const CountersJobName = "league_counters_rebuild"

// CountersRebuilder пересчитывает денормализованные счетчики leagueteam.
type CountersRebuilder interface {
	RebuildCounters(ctx context.Context) error
}

// RegisterCountersJob schedules the periodic counters rebuild. Every run gets
// its own deadline.
func RegisterCountersJob(s *Service, rebuilder CountersRebuilder, cronExpr string, timeout time.Duration) (gocron.Job, error) {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return s.AddJob(CountersJobName, cronExpr, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return rebuilder.RebuildCounters(ctx)
	})
}
