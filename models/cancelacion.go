package models

import (
	"time"
)

// SolicitudCancelacion records one cancellation request and its outcome.
// estado_previo preserves the status held when cancellation was asked for,
// so a rejected request can put the solicitud back where it was.
type SolicitudCancelacion struct {
	ID                 uint64            `gorm:"primaryKey" json:"id"`
	SolicitudId        uint64            `gorm:"index;not null" json:"solicitud_id"`
	Estado             CancelacionEstado `gorm:"type:enum('pendiente','aprobada','rechazada');default:'pendiente';index" json:"estado"`
	Motivo             *string           `gorm:"size:500" json:"motivo"`
	EstadoPrevio       SolicitudEstado   `gorm:"size:40;not null" json:"estado_previo"`
	SolicitanteId      string            `gorm:"size:64;not null" json:"solicitante_id"`
	DecididoPor        *string           `gorm:"size:64" json:"decidido_por"`
	DecisionComentario *string           `gorm:"size:500" json:"decision_comentario"`
	RequestedAt        time.Time         `gorm:"autoCreateTime" json:"requested_at"`
	DecisionAt         *time.Time        `json:"decision_at"`
}

func (SolicitudCancelacion) TableName() string {
	return "solicitud_cancelaciones"
}
