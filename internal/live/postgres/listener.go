// Package postgres feeds the live gateway from PostgreSQL LISTEN/NOTIFY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/pkg/postgres"
)

var reconnectsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "incidentdesk",
		Subsystem: "live",
		Name:      "listener_reconnects_total",
		Help:      "Total number of change listener reconnects",
	},
)

// Publisher receives change signals.
type Publisher interface {
	Publish(change domain.Change)
}

// ListenerConfig holds reconnect settings.
type ListenerConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Listener holds a dedicated connection listening on the changes channel.
type Listener struct {
	pool      *pgxpool.Pool
	publisher Publisher
	config    ListenerConfig
}

// NewListener creates a listener.
func NewListener(pool *pgxpool.Pool, publisher Publisher, config ListenerConfig) *Listener {
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = 500 * time.Millisecond
	}
	if config.MaxBackoff < config.InitialBackoff {
		config.MaxBackoff = 30 * time.Second
	}
	return &Listener{
		pool:      pool,
		publisher: publisher,
		config:    config,
	}
}

// Run listens until ctx is done, reconnecting with exponential backoff.
// Every (re)connect publishes a change on all topics, since signals sent
// while disconnected are lost.
func (l *Listener) Run(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.config.InitialBackoff
	b.MaxInterval = l.config.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	for {
		err := l.listen(ctx, b.Reset)
		if ctx.Err() != nil {
			return nil
		}

		wait := b.NextBackOff()
		slog.Warn("change listener disconnected", "error", err, "retry_in", wait)
		reconnectsTotal.Inc()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *Listener) listen(ctx context.Context, connected func()) error {
	conn, err := pgx.ConnectConfig(ctx, l.pool.Config().ConnConfig)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := conn.Close(closeCtx); err != nil {
			slog.Debug("failed to close listener connection", "error", err)
		}
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{postgres.ChangesChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	connected()
	slog.Info("change listener connected", "channel", postgres.ChangesChannel)
	l.publisher.Publish(domain.Change{Topic: domain.TopicAll})

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			return fmt.Errorf("wait for notification: %w", err)
		}

		change, err := postgres.ParseChange(notification.Payload)
		if err != nil {
			slog.Warn("dropping malformed change signal", "payload", notification.Payload, "error", err)
			continue
		}
		l.publisher.Publish(change)
	}
}
