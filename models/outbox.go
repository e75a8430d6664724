package models

import (
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for OutboxMessage.Status.
// Keep these as strings (DB values).
const (
	OutboxStatusPending    = "PENDING"
	OutboxStatusProcessing = "PROCESSING"
	OutboxStatusPublished  = "PUBLISHED"
	OutboxStatusFailed     = "FAILED"
	OutboxStatusDead       = "DEAD"
)

// OutboxMessage implements the transactional outbox: it is written inside
// the same DB transaction as the state change that produced it and
// published to Pub/Sub asynchronously by the outbox dispatcher after
// commit.
type OutboxMessage struct {
	ID            uint64     `gorm:"primaryKey;index:idx_outbox_dispatch,priority:3" json:"id"`
	EventType     string     `gorm:"size:100;not null;index" json:"event_type"`
	AggregateType string     `gorm:"size:50;not null;default:'solicitud'" json:"aggregate_type"`
	AggregateId   uint64     `gorm:"index;not null" json:"aggregate_id"`
	Payload       []byte     `gorm:"type:json" json:"payload"`
	OrderingKey   string     `gorm:"size:64;not null" json:"ordering_key"`
	Status        string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt      *time.Time `gorm:"index" json:"locked_at"`
	LockedBy      *string    `gorm:"size:100" json:"locked_by"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	PublishedAt   *time.Time `gorm:"index" json:"published_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}

// ConvertToNotifyEvent rebuilds the wire event from a stored outbox row.
func ConvertToNotifyEvent(record OutboxMessage) (config.NotifyEvent, error) {
	var event config.NotifyEvent
	if err := utils.UnmarshalFromJSON(record.Payload, &event); err != nil {
		return config.NotifyEvent{}, err
	}
	event.CorrelationId = record.CorrelationId
	return event, nil
}

/* outgoing mail */

const (
	OutboxEmailStatusQueued = "queued"
	OutboxEmailStatusSent   = "sent"
	OutboxEmailStatusError  = "error"
)

type OutboxEmail struct {
	ID              uint64     `gorm:"primaryKey" json:"id"`
	ToEmail         string     `gorm:"size:150;not null" json:"to_email"`
	Subject         string     `gorm:"size:255;not null" json:"subject"`
	Body            string     `gorm:"type:text" json:"body"`
	AttachmentsJson *string    `gorm:"type:text" json:"attachments_json"`
	Status          string     `gorm:"size:20;index;not null;default:'queued'" json:"status"`
	Error           *string    `gorm:"type:text" json:"error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	SentAt          *time.Time `json:"sent_at"`
}

func (OutboxEmail) TableName() string {
	return "outbox_emails"
}

// EncolarEmail queues an outgoing mail inside the caller's transaction.
func EncolarEmail(tx *gorm.DB, toEmail string, subject string, body string, attachmentsJson *string) error {
	email := OutboxEmail{
		ToEmail:         toEmail,
		Subject:         subject,
		Body:            body,
		AttachmentsJson: attachmentsJson,
		Status:          OutboxEmailStatusQueued,
	}
	return tx.Create(&email).Error
}
