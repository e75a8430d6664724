package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PublishNotificacion implements the transactional outbox for the
// notification fan-out: it writes one notificaciones row per recipient and
// the outbox_messages row inside the caller's DB transaction but does NOT
// publish to Pub/Sub. Publishing is performed asynchronously by the outbox
// dispatcher after commit.
func PublishNotificacion(ctx context.Context, tx *gorm.DB, eventType string, aggregateType string, aggregateId uint64, solicitudId *uint64, actorId string, destinatarios []string, mensaje string, payload interface{}) error {

	recipients := make([]string, 0, len(destinatarios))
	for _, destinatario := range utils.UniqueSlice(destinatarios) {
		if destinatario == "" {
			continue
		}
		recipients = append(recipients, destinatario)
	}

	for _, destinatario := range recipients {
		notificacion := Notificacion{
			DestinatarioId: destinatario,
			SolicitudId:    solicitudId,
			Mensaje:        mensaje,
		}
		if err := tx.Create(&notificacion).Error; err != nil {
			return err
		}
	}

	var payloadJSON []byte
	if payload != nil {
		encoded, err := utils.MarshalToJSON(payload)
		if err != nil {
			return err
		}
		payloadJSON = []byte(encoded)
	}

	event := config.NotifyEvent{
		ID:            uuid.NewString(),
		EventType:     eventType,
		SolicitudId:   utils.DereferencePtr(solicitudId),
		ReferenceId:   aggregateId,
		ReferenceType: aggregateType,
		ActorId:       actorId,
		Recipients:    recipients,
		Mensaje:       mensaje,
		OccurredAt:    time.Now().UTC(),
		Payload:       payloadJSON,
	}
	eventJSON, err := utils.MarshalToJSON(event)
	if err != nil {
		return err
	}

	record := OutboxMessage{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateId:   aggregateId,
		Payload:       []byte(eventJSON),
		OrderingKey:   fmt.Sprintf("%s-%d", aggregateType, aggregateId),
		Status:        OutboxStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

// NotificarSolicitud is the common case: fan out a lifecycle event of one
// solicitud carrying a compact snapshot.
func NotificarSolicitud(ctx context.Context, tx *gorm.DB, eventType string, solicitud *Solicitud, actorId string, destinatarios []string, mensaje string) error {
	snapshot := solicitudSnapshot{
		ID:         solicitud.ID,
		Status:     solicitud.Status,
		Centro:     solicitud.Centro,
		Sector:     solicitud.Sector,
		TotalMonto: solicitud.TotalMonto,
	}
	id := solicitud.ID
	return PublishNotificacion(ctx, tx, eventType, "solicitud", solicitud.ID, &id, actorId, destinatarios, mensaje, snapshot)
}

type solicitudSnapshot struct {
	ID         uint64          `json:"id"`
	Status     SolicitudEstado `json:"status"`
	Centro     string          `json:"centro"`
	Sector     string          `json:"sector"`
	TotalMonto decimal.Decimal `json:"total_monto"`
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
