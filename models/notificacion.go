package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
)

// Notificacion is the in-app surface of the fan-out; the outbox carries
// the same event to the external rendering channel.
type Notificacion struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	DestinatarioId string    `gorm:"size:64;index;not null" json:"destinatario_id"`
	SolicitudId    *uint64   `gorm:"index" json:"solicitud_id"`
	Mensaje        string    `gorm:"size:500;not null" json:"mensaje"`
	Leido          bool      `gorm:"not null;default:false;index" json:"leido"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Notificacion) TableName() string {
	return "notificaciones"
}

// ListNotificaciones returns the actor's notifications newest first.
func ListNotificaciones(ctx context.Context, destinatarioId string, limit int) ([]*Notificacion, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	db := config.GetDB()
	var notificaciones []*Notificacion
	err := db.WithContext(ctx).
		Where("destinatario_id = ?", destinatarioId).
		Order("id DESC").
		Limit(limit).
		Find(&notificaciones).Error
	if err != nil {
		return nil, err
	}
	return notificaciones, nil
}

func CountNoLeidas(ctx context.Context, destinatarioId string) (int64, error) {
	db := config.GetDB()
	var count int64
	err := db.WithContext(ctx).Model(&Notificacion{}).
		Where("destinatario_id = ? AND leido = 0", destinatarioId).
		Count(&count).Error
	return count, err
}

// MarcarLeidas marks the given ids (or everything when markAll) as read,
// scoped to the actor, and returns the remaining unread count.
func MarcarLeidas(ctx context.Context, destinatarioId string, ids []uint64, markAll bool) (int64, error) {
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&Notificacion{}).
		Where("destinatario_id = ? AND leido = 0", destinatarioId)
	if !markAll {
		if len(ids) == 0 {
			return CountNoLeidas(ctx, destinatarioId)
		}
		dbCtx = dbCtx.Where("id IN ?", ids)
	}
	if err := dbCtx.Update("leido", true).Error; err != nil {
		return 0, err
	}
	return CountNoLeidas(ctx, destinatarioId)
}
