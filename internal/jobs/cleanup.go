package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// SessionPurger is the retention-side surface of the session service.
type SessionPurger interface {
	PurgeTerminatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupJob periodically purges completed and cancelled sessions past the
// retention window, retracting idea back-references as it goes.
type CleanupJob struct {
	purger    SessionPurger
	retention time.Duration
	interval  time.Duration
	done      chan struct{}
}

func NewCleanupJob(purger SessionPurger, retention, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		purger:    purger,
		retention: retention,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.retention)
	count, err := j.purger.PurgeTerminatedBefore(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("failed to purge terminated sessions")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("purged terminated sessions")
	}
}
