package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// JanitorConfig contains retention settings.
type JanitorConfig struct {
	Retention time.Duration
	Schedule  string
}

// DefaultJanitorConfig returns default retention settings.
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		Retention: 30 * 24 * time.Hour,
		Schedule:  "@every 1h",
	}
}

// Janitor removes read notifications past their retention on a cron schedule.
type Janitor struct {
	config JanitorConfig
	repo   Repository
	cron   *cron.Cron
	now    func() time.Time
}

// NewJanitor creates a janitor. The schedule uses standard cron syntax or
// descriptors such as "@every 1h".
func NewJanitor(config JanitorConfig, repo Repository) (*Janitor, error) {
	if config.Retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", config.Retention)
	}

	j := &Janitor{
		config: config,
		repo:   repo,
		cron:   cron.New(),
		now:    time.Now,
	}

	if _, err := j.cron.AddFunc(config.Schedule, j.run); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", config.Schedule, err)
	}
	return j, nil
}

// Start launches the scheduler.
func (j *Janitor) Start() {
	slog.Info("starting notification janitor",
		"schedule", j.config.Schedule,
		"retention", j.config.Retention,
	)
	j.cron.Start()
}

// Stop stops the scheduler and waits for a running purge to finish.
func (j *Janitor) Stop(ctx context.Context) {
	done := j.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	slog.Info("notification janitor stopped")
}

// Purge deletes read notifications older than the retention.
func (j *Janitor) Purge(ctx context.Context) (int, error) {
	cutoff := j.now().Add(-j.config.Retention)
	n, err := j.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	notificationsPurged.Add(float64(n))
	return n, nil
}

func (j *Janitor) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := j.Purge(ctx)
	if err != nil {
		slog.Error("notification purge failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("purged read notifications", "count", n)
	}
}
