package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/hospital-api/internal/model"
	"github.com/jwalitptl/hospital-api/internal/repository"
	"github.com/jwalitptl/hospital-api/pkg/logger"
	"github.com/jwalitptl/hospital-api/pkg/messaging"
	"github.com/jwalitptl/hospital-api/pkg/metrics"
)

type DispatcherConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	// Channel prefixes the per-user channel: "<Channel>.<user id>".
	Channel string
}

// Dispatcher pushes stored notifications to their recipients' broker
// channels. Failed deliveries are retried on later polls until
// RetryAttempts is reached.
type Dispatcher struct {
	tx      repository.Transactor
	repo    repository.NotificationRepository
	broker  messaging.Broker
	config  DispatcherConfig
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewDispatcher(
	repos *repository.Repositories,
	broker messaging.Broker,
	config DispatcherConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Dispatcher {
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		panic("RetryAttempts must be greater than 0")
	}
	if config.RetryDelay <= 0 {
		panic("RetryDelay must be greater than 0")
	}
	if config.Channel == "" {
		config.Channel = "notifications"
	}

	return &Dispatcher{
		tx:      repos.Tx,
		repo:    repos.Notifications,
		broker:  broker,
		config:  config,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	d.logger.Info("Starting notification dispatcher", "channel", d.config.Channel)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Shutting down notification dispatcher")
			return
		case <-ticker.C:
			if _, err := d.DispatchBatch(ctx); err != nil {
				d.logger.Error(err, "Failed to dispatch notifications")
			}
		}
	}
}

// DispatchBatch delivers one batch of due notifications and returns how
// many were sent. Rows stay locked for the duration of the batch so
// concurrent dispatchers skip them.
func (d *Dispatcher) DispatchBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(d.metrics.DispatchLatency)
	defer timer.ObserveDuration()

	sent := 0
	err := d.tx.WithinTx(ctx, func(ctx context.Context) error {
		pending, err := d.repo.GetPendingWithLock(ctx, d.config.BatchSize, d.now())
		if err != nil {
			return fmt.Errorf("failed to get pending notifications: %w", err)
		}
		d.metrics.NotificationQueueSize.Set(float64(len(pending)))

		for _, n := range pending {
			ok, err := d.dispatch(ctx, n)
			if err != nil {
				return err
			}
			if ok {
				sent++
			}
		}
		return nil
	})
	return sent, err
}

// dispatch publishes n and records the outcome. Only a failure to record
// the outcome is returned as an error.
func (d *Dispatcher) dispatch(ctx context.Context, n *model.Notification) (bool, error) {
	msg := model.NotificationMessage{
		ID:        n.ID,
		UserID:    n.UserID,
		Kind:      n.Kind,
		Title:     n.Title,
		Content:   n.Content,
		CreatedAt: n.CreatedAt,
	}

	pubErr := d.broker.Publish(ctx, d.channelFor(n), msg)
	if pubErr == nil {
		d.metrics.NotificationsDispatched.WithLabelValues(string(model.NotificationStatusSent)).Inc()
		if err := d.repo.MarkSent(ctx, n.ID, d.now()); err != nil {
			return false, fmt.Errorf("failed to mark notification %s sent: %w", n.ID, err)
		}
		return true, nil
	}

	attempts := n.RetryCount + 1
	status := model.NotificationStatusRetrying
	var next *time.Time
	if attempts >= d.config.RetryAttempts {
		status = model.NotificationStatusFailed
	} else {
		at := d.now().Add(time.Duration(attempts) * d.config.RetryDelay)
		next = &at
	}
	d.metrics.NotificationsDispatched.WithLabelValues(string(status)).Inc()
	d.logger.Warn(pubErr, "Failed to publish notification",
		"notification_id", n.ID.String(),
		"attempt", attempts,
		"status", string(status))

	if err := d.repo.MarkFailed(ctx, n.ID, status, attempts, pubErr.Error(), next); err != nil {
		return false, fmt.Errorf("failed to mark notification %s %s: %w", n.ID, status, err)
	}
	return false, nil
}

func (d *Dispatcher) channelFor(n *model.Notification) string {
	return d.config.Channel + "." + n.UserID.String()
}
