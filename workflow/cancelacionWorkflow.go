package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"gorm.io/gorm"
)

// estadosCancelables are the statuses that need the resolver's approval
// before cancelling. draft and cancelacion_rechazada cancel directly.
var estadosCancelables = []models.SolicitudEstado{
	models.SolicitudEstadoPendienteDeAprobacion,
	models.SolicitudEstadoAprobada,
	models.SolicitudEstadoEnTratamiento,
}

func esCancelable(estado models.SolicitudEstado) bool {
	for _, e := range estadosCancelables {
		if e == estado {
			return true
		}
	}
	return false
}

// resolverDeCancelacion picks who must decide a cancellation: the claim
// holder when one exists, otherwise the assigned approver.
func resolverDeCancelacion(solicitud *models.Solicitud) *string {
	if solicitud.PlannerId != nil {
		return solicitud.PlannerId
	}
	return solicitud.AprobadorId
}

// SolicitarCancelacion is the requester's exit path. Drafts and
// solicitudes whose previous cancellation was rejected cancel on the spot;
// anything already in flight raises a pendiente request that the resolver
// must approve.
func SolicitarCancelacion(ctx context.Context, actor models.Actor, solicitudId uint64, motivo *string) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if motivo != nil && len(*motivo) > 500 {
		return nil, utils.NewValidationError("motivo", "no debe superar 500 caracteres")
	}

	lock, err := utils.ObtainSolicitudLock(ctx, solicitudId, "cancelacionWorkflow.go", "SolicitarCancelacion")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseSolicitudLock(ctx, lock)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireSolicitudLock(tx, solicitudId); err != nil {
			return err
		}
		defer ReleaseSolicitudLock(tx, solicitudId)

		var solicitud models.Solicitud
		if err := tx.First(&solicitud, "id = ?", solicitudId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if !solicitud.EsDelSolicitante(actor) {
			return utils.ErrorNotAuthorized
		}

		// direct cancel, no approval involved
		if solicitud.Status == models.SolicitudEstadoDraft || solicitud.Status == models.SolicitudEstadoCancelacionRechazada {
			if err := cambiarStatus(tx, &solicitud, models.SolicitudEstadoCancelada); err != nil {
				return err
			}
			if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitudId).Updates(map[string]interface{}{
				"planner_id": nil,
				"claimed_at": nil,
			}).Error; err != nil {
				return err
			}
			destinatarios := []string{}
			if solicitud.AprobadorId != nil {
				destinatarios = append(destinatarios, *solicitud.AprobadorId)
			}
			if solicitud.PlannerId != nil {
				destinatarios = append(destinatarios, *solicitud.PlannerId)
			}
			if len(destinatarios) > 0 {
				mensaje := fmt.Sprintf("Solicitud #%d cancelada", solicitudId)
				if err := models.NotificarSolicitud(ctx, tx, "solicitud.cancelada", &solicitud, actor.IdSpm, destinatarios, mensaje); err != nil {
					config.LogError(logger, "cancelacionWorkflow.go", "SolicitarCancelacion", "NotificarSolicitud", solicitudId, err)
					return err
				}
			}
			return nil
		}

		if !esCancelable(solicitud.Status) {
			return utils.ErrorInvalidTransition
		}

		var pendientes int64
		if err := tx.Model(&models.SolicitudCancelacion{}).
			Where("solicitud_id = ? AND estado = ?", solicitudId, models.CancelacionEstadoPendiente).
			Count(&pendientes).Error; err != nil {
			return err
		}
		if pendientes > 0 {
			return utils.ErrorInvalidTransition
		}

		cancelacion := models.SolicitudCancelacion{
			SolicitudId:   solicitudId,
			EstadoPrevio:  solicitud.Status,
			SolicitanteId: actor.IdSpm,
			Motivo:        motivo,
			Estado:        models.CancelacionEstadoPendiente,
		}
		if err := tx.Create(&cancelacion).Error; err != nil {
			config.LogError(logger, "cancelacionWorkflow.go", "SolicitarCancelacion", "create cancelacion", solicitudId, err)
			return err
		}
		if err := cambiarStatus(tx, &solicitud, models.SolicitudEstadoCancelacionPendiente); err != nil {
			return err
		}

		if resolver := resolverDeCancelacion(&solicitud); resolver != nil {
			mensaje := fmt.Sprintf("Solicitud #%d solicita cancelación", solicitudId)
			if err := models.NotificarSolicitud(ctx, tx, "solicitud.cancelacion_pendiente", &solicitud, actor.IdSpm, []string{*resolver}, mensaje); err != nil {
				config.LogError(logger, "cancelacionWorkflow.go", "SolicitarCancelacion", "NotificarSolicitud", solicitudId, err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

// ResolverCancelacion decides a pendiente cancellation. Approving releases
// the claim and closes the solicitud; rejecting sends it back to the state
// it was cancelled from, ownership intact.
func ResolverCancelacion(ctx context.Context, actor models.Actor, solicitudId uint64, accion models.DecisionAccion, comentario *string) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if comentario != nil && len(*comentario) > 500 {
		return nil, utils.NewValidationError("comentario", "no debe superar 500 caracteres")
	}

	lock, err := utils.ObtainSolicitudLock(ctx, solicitudId, "cancelacionWorkflow.go", "ResolverCancelacion")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseSolicitudLock(ctx, lock)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireSolicitudLock(tx, solicitudId); err != nil {
			return err
		}
		defer ReleaseSolicitudLock(tx, solicitudId)

		var solicitud models.Solicitud
		if err := tx.First(&solicitud, "id = ?", solicitudId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}

		var cancelacion models.SolicitudCancelacion
		if err := tx.Where("solicitud_id = ?", solicitudId).Order("id DESC").First(&cancelacion).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorInvalidTransition
			}
			return err
		}
		if cancelacion.Estado != models.CancelacionEstadoPendiente {
			return utils.ErrorAlreadyResolved
		}
		if solicitud.Status != models.SolicitudEstadoCancelacionPendiente {
			return utils.ErrorInvalidTransition
		}

		resolver := resolverDeCancelacion(&solicitud)
		if resolver == nil || *resolver != actor.IdSpm {
			return utils.ErrorNotAuthorized
		}

		now := time.Now().UTC()
		if accion == models.DecisionAccionAprobar {
			if err := tx.Model(&models.SolicitudCancelacion{}).Where("id = ?", cancelacion.ID).Updates(map[string]interface{}{
				"estado":              models.CancelacionEstadoAprobada,
				"decidido_por":        actor.IdSpm,
				"decision_comentario": comentario,
				"decision_at":         now,
			}).Error; err != nil {
				config.LogError(logger, "cancelacionWorkflow.go", "ResolverCancelacion", "aprobar cancelacion", solicitudId, err)
				return err
			}
			if err := cambiarStatus(tx, &solicitud, models.SolicitudEstadoCancelada); err != nil {
				return err
			}
			if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitudId).Updates(map[string]interface{}{
				"planner_id": nil,
				"claimed_at": nil,
			}).Error; err != nil {
				return err
			}
			mensaje := fmt.Sprintf("Solicitud #%d cancelada", solicitudId)
			if err := models.NotificarSolicitud(ctx, tx, "solicitud.cancelada", &solicitud, actor.IdSpm, []string{solicitud.IdUsuario}, mensaje); err != nil {
				config.LogError(logger, "cancelacionWorkflow.go", "ResolverCancelacion", "NotificarSolicitud", solicitudId, err)
				return err
			}
			return nil
		}

		if err := tx.Model(&models.SolicitudCancelacion{}).Where("id = ?", cancelacion.ID).Updates(map[string]interface{}{
			"estado":              models.CancelacionEstadoRechazada,
			"decidido_por":        actor.IdSpm,
			"decision_comentario": comentario,
			"decision_at":         now,
		}).Error; err != nil {
			config.LogError(logger, "cancelacionWorkflow.go", "ResolverCancelacion", "rechazar cancelacion", solicitudId, err)
			return err
		}
		if err := cambiarStatus(tx, &solicitud, models.SolicitudEstadoCancelacionRechazada); err != nil {
			return err
		}
		// back to the state it was cancelled from; a solicitud with an
		// unusable estado_previo stays in cancelacion_rechazada for the
		// requester to re-submit or cancel outright
		if cancelacion.EstadoPrevio != "" && models.CanTransition(solicitud.Status, cancelacion.EstadoPrevio) {
			if err := cambiarStatus(tx, &solicitud, cancelacion.EstadoPrevio); err != nil {
				return err
			}
		}
		mensaje := fmt.Sprintf("Solicitud #%d: cancelación rechazada", solicitudId)
		if err := models.NotificarSolicitud(ctx, tx, "solicitud.cancelacion_rechazada", &solicitud, actor.IdSpm, []string{solicitud.IdUsuario}, mensaje); err != nil {
			config.LogError(logger, "cancelacionWorkflow.go", "ResolverCancelacion", "NotificarSolicitud", solicitudId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}
