package janitor

import (
	"context"
	"time"

	"github.com/nkiryanov/authserver/internal/logger"
)

const defaultInterval = time.Hour

type cleaner interface {
	// Delete expired blacklist records
	DeleteExpired(ctx context.Context) (int64, error)
}

// Janitor periodically removes blacklist records of expired access tokens
type Janitor struct {
	interval time.Duration
	cleaner  cleaner
	logger   logger.Logger
}

// Zero or negative interval means default one
func New(interval time.Duration, c cleaner, l logger.Logger) *Janitor {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Janitor{interval: interval, cleaner: c, logger: l}
}

func (j *Janitor) clean(ctx context.Context) {
	deleted, err := j.cleaner.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("Failed to delete expired blacklist records", "error", err)
		return
	}
	j.logger.Debug("Expired blacklist records deleted", "deleted", deleted)
}

// Run cleans storage on every tick until context is done
// Returned channel is closed when janitor stopped
func (j *Janitor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	j.logger.Debug("Starting janitor", "interval", j.interval)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Debug("Janitor stopped by context")
				return

			case <-ticker.C:
				j.clean(ctx)
			}
		}
	}()

	return idleStopped
}
