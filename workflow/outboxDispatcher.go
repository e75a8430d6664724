package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxDispatcher publishes committed outbox rows to Pub/Sub. Claiming
// uses FOR UPDATE SKIP LOCKED so several replicas can each run one without
// double-publishing a non-stale row.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize      int
	PollInterval   time.Duration
	LockTimeout    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:             db,
		Logger:         logger,
		DispatcherID:   uuid.NewString(),
		BatchSize:      50,
		PollInterval:   500 * time.Millisecond,
		LockTimeout:    30 * time.Second,
		MaxAttempts:    20,
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     10 * time.Minute,
	}
}

// Run polls until ctx is cancelled.
func (d *OutboxDispatcher) Run(ctx context.Context) {
	d.Logger.WithFields(logrus.Fields{"dispatcher_id": d.DispatcherID}).Info("outbox dispatcher started")
	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.Logger.WithFields(logrus.Fields{"dispatcher_id": d.DispatcherID}).Info("outbox dispatcher stopped")
			return
		case <-ticker.C:
			if _, err := d.dispatchOnce(ctx); err != nil {
				d.Logger.WithFields(logrus.Fields{
					"dispatcher_id": d.DispatcherID,
					"error":         err.Error(),
				}).Error("outbox dispatch cycle failed")
			}
			if _, err := d.drainEmails(ctx); err != nil {
				d.Logger.WithFields(logrus.Fields{
					"dispatcher_id": d.DispatcherID,
					"error":         err.Error(),
				}).Error("outbox email drain failed")
			}
		}
	}
}

// dispatchOnce claims one batch inside a transaction, then publishes after
// commit. Rows stuck in PROCESSING longer than the lock timeout belonged to
// a dead dispatcher and are reclaimed.
func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	stale := now.Add(-d.LockTimeout)

	var claimed []models.OutboxMessage
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.OutboxMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status IN ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?))"+
				" OR (status = ? AND locked_at IS NOT NULL AND locked_at <= ?)",
				[]string{models.OutboxStatusPending, models.OutboxStatusFailed}, now,
				models.OutboxStatusProcessing, stale).
			Order("id ASC").
			Limit(d.BatchSize).
			Find(&rows).Error
		if err != nil {
			return err
		}
		for i := range rows {
			row := &rows[i]
			if row.Attempts >= d.MaxAttempts {
				if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
					"status":     models.OutboxStatusDead,
					"last_error": fmt.Sprintf("max publish attempts reached (%d)", row.Attempts),
					"locked_at":  nil,
					"locked_by":  nil,
				}).Error; err != nil {
					return err
				}
				d.Logger.WithFields(logrus.Fields{
					"dispatcher_id": d.DispatcherID,
					"outbox_id":     row.ID,
					"event_type":    row.EventType,
					"attempts":      row.Attempts,
				}).Error("outbox message dead, giving up")
				continue
			}
			if err := tx.Model(&models.OutboxMessage{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
				"status":    models.OutboxStatusProcessing,
				"attempts":  gorm.Expr("attempts + 1"),
				"locked_at": now,
				"locked_by": d.DispatcherID,
			}).Error; err != nil {
				return err
			}
			row.Attempts++
			claimed = append(claimed, *row)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// SPM_OUTBOX_DIRECT: environments without Pub/Sub (local/dev) complete
	// rows locally — the in-app notificaciones were already written in the
	// triggering transaction, publishing is the only job left.
	direct := config.OutboxDirectPublish()

	published := 0
	for _, row := range claimed {
		event, err := models.ConvertToNotifyEvent(row)
		if err != nil {
			d.markPublishFailed(ctx, row, err)
			continue
		}
		if !direct {
			if _, err := config.PublishNotifyEvent(ctx, row.OrderingKey, event); err != nil {
				d.markPublishFailed(ctx, row, err)
				continue
			}
		}
		d.markPublishSent(ctx, row)
		published++
	}
	return published, nil
}

func (d *OutboxDispatcher) markPublishSent(ctx context.Context, row models.OutboxMessage) {
	now := time.Now().UTC()
	err := d.DB.WithContext(ctx).Model(&models.OutboxMessage{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":       models.OutboxStatusPublished,
		"published_at": now,
		"locked_at":    nil,
		"locked_by":    nil,
		"last_error":   nil,
	}).Error
	if err != nil {
		d.Logger.WithFields(logrus.Fields{
			"dispatcher_id": d.DispatcherID,
			"outbox_id":     row.ID,
			"error":         err.Error(),
		}).Error("failed to mark outbox message published")
	}
}

// backoffFor doubles the retry delay per prior attempt, capped at MaxBackoff.
func (d *OutboxDispatcher) backoffFor(attempts int) time.Duration {
	backoff := d.InitialBackoff
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= d.MaxBackoff {
			return d.MaxBackoff
		}
	}
	return backoff
}

func (d *OutboxDispatcher) markPublishFailed(ctx context.Context, row models.OutboxMessage, cause error) {
	nextAttempt := time.Now().UTC().Add(d.backoffFor(row.Attempts))

	status := models.OutboxStatusFailed
	if row.Attempts >= d.MaxAttempts {
		status = models.OutboxStatusDead
	}
	err := d.DB.WithContext(ctx).Model(&models.OutboxMessage{}).Where("id = ?", row.ID).Updates(map[string]interface{}{
		"status":          status,
		"next_attempt_at": nextAttempt,
		"locked_at":       nil,
		"locked_by":       nil,
		"last_error":      cause.Error(),
	}).Error
	if err != nil {
		d.Logger.WithFields(logrus.Fields{
			"dispatcher_id": d.DispatcherID,
			"outbox_id":     row.ID,
			"error":         err.Error(),
		}).Error("failed to mark outbox message failed")
		return
	}
	d.Logger.WithFields(logrus.Fields{
		"dispatcher_id": d.DispatcherID,
		"outbox_id":     row.ID,
		"event_type":    row.EventType,
		"attempts":      row.Attempts,
		"next_attempt":  nextAttempt,
		"status":        status,
		"error":         cause.Error(),
	}).Warn("outbox publish failed")
}

// drainEmails hands queued outbox mails to the mailer topic. Email delivery
// is at-least-once; a duplicate beats a silent drop.
func (d *OutboxDispatcher) drainEmails(ctx context.Context) (int, error) {
	var pending []models.OutboxEmail
	err := d.DB.WithContext(ctx).
		Where("status = ?", models.OutboxEmailStatusQueued).
		Order("id ASC").
		Limit(d.BatchSize).
		Find(&pending).Error
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, email := range pending {
		if _, err := config.PublishEmailEvent(ctx, email); err != nil {
			if updateErr := d.DB.WithContext(ctx).Model(&models.OutboxEmail{}).Where("id = ?", email.ID).Updates(map[string]interface{}{
				"status": models.OutboxEmailStatusError,
				"error":  err.Error(),
			}).Error; updateErr != nil {
				d.Logger.WithFields(logrus.Fields{
					"dispatcher_id": d.DispatcherID,
					"email_id":      email.ID,
					"error":         updateErr.Error(),
				}).Error("failed to mark outbox email error")
			}
			continue
		}
		now := time.Now().UTC()
		if err := d.DB.WithContext(ctx).Model(&models.OutboxEmail{}).Where("id = ?", email.ID).Updates(map[string]interface{}{
			"status":  models.OutboxEmailStatusSent,
			"sent_at": now,
			"error":   nil,
		}).Error; err != nil {
			d.Logger.WithFields(logrus.Fields{
				"dispatcher_id": d.DispatcherID,
				"email_id":      email.ID,
				"error":         err.Error(),
			}).Error("failed to mark outbox email sent")
			continue
		}
		sent++
	}
	return sent, nil
}
