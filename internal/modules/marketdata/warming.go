package marketdata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// WarmingJob periodically refreshes the most requested symbols so the
// request path keeps hitting fresh entries. Runs on the scheduler,
// decoupled from callers; provider failures are logged and reported to the
// scheduler, never panic.
type WarmingJob struct {
	service *Service
	topN    int
	timeout time.Duration
	log     zerolog.Logger
}

// NewWarmingJob creates a cache warming job refreshing the topN most
// accessed symbols each run.
func NewWarmingJob(service *Service, topN int, timeout time.Duration, log zerolog.Logger) *WarmingJob {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WarmingJob{
		service: service,
		topN:    topN,
		timeout: timeout,
		log:     log.With().Str("job", "cache_warming").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *WarmingJob) Name() string { return "cache_warming" }

// Run refreshes the current warm set.
func (j *WarmingJob) Run() error {
	symbols := j.service.TopAccessed(j.topN)
	if len(symbols) == 0 {
		j.log.Debug().Msg("No symbols to warm yet")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.service.Refresh(ctx, symbols); err != nil {
		j.log.Warn().Err(err).Int("symbols", len(symbols)).Msg("Cache warming refresh failed")
		return err
	}

	j.log.Debug().Int("symbols", len(symbols)).Msg("Cache warmed")
	return nil
}
