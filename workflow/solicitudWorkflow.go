package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// cambiarStatus is the single writer of solicitudes.status. Every
// transition passes through the table in models.CanTransition, and the
// UPDATE is conditional on the status we read: a row that moved underneath
// (the claim CAS runs outside the advisory lock) must never be clobbered.
func cambiarStatus(tx *gorm.DB, solicitud *models.Solicitud, to models.SolicitudEstado) error {
	if !models.CanTransition(solicitud.Status, to) {
		return utils.ErrorInvalidTransition
	}
	result := tx.Model(&models.Solicitud{}).
		Where("id = ? AND status = ?", solicitud.ID, solicitud.Status).
		Update("status", to)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorInvalidTransition
	}
	solicitud.Status = to
	return nil
}

func aplicarHeader(solicitud *models.Solicitud, header models.NewSolicitudHeader) error {
	fecha, err := utils.ParseFecha(header.FechaNecesidad)
	if err != nil {
		return err
	}
	criticidad := strings.TrimSpace(header.Criticidad)
	if criticidad == "" {
		criticidad = models.CriticidadDefault
	}
	solicitud.Centro = header.Centro
	solicitud.Sector = header.Sector
	solicitud.Justificacion = header.Justificacion
	solicitud.CentroCostos = header.CentroCostos
	solicitud.AlmacenVirtual = header.AlmacenVirtual
	solicitud.Criticidad = criticidad
	solicitud.FechaNecesidad = &fecha
	return nil
}

// validarCatalogos checks center, sector and warehouse against the active
// catalogs. Only run at submit; drafts may hold anything.
func validarCatalogos(ctx context.Context, header models.NewSolicitudHeader) error {
	ok, err := models.CentroActivo(ctx, header.Centro)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewValidationError("centro", "no existe o está inactivo: %s", header.Centro)
	}
	ok, err = models.SectorActivo(ctx, header.Sector)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewValidationError("sector", "no existe o está inactivo: %s", header.Sector)
	}
	ok, err = models.AlmacenActivo(ctx, header.AlmacenVirtual)
	if err != nil {
		return err
	}
	if !ok {
		return utils.NewValidationError("almacen_virtual", "no existe o está inactivo: %s", header.AlmacenVirtual)
	}
	return nil
}

// reemplazarItems swaps the full item set and recomputes the requested
// total. Item indexes are the positions in the submitted list.
func reemplazarItems(tx *gorm.DB, solicitud *models.Solicitud, items []models.NewSolicitudItem) error {
	if err := tx.Where("solicitud_id = ?", solicitud.ID).Delete(&models.SolicitudItem{}).Error; err != nil {
		return err
	}
	rows := make([]models.SolicitudItem, 0, len(items))
	for index, item := range items {
		if err := item.Validate(index); err != nil {
			return err
		}
		rows = append(rows, models.SolicitudItem{
			SolicitudId:    solicitud.ID,
			ItemIndex:      index,
			Codigo:         item.Codigo,
			Descripcion:    item.Descripcion,
			Unidad:         item.Unidad,
			Cantidad:       item.Cantidad,
			PrecioUnitario: item.PrecioUnitario,
			Subtotal:       models.Subtotal(item.Cantidad, &item.PrecioUnitario),
		})
	}
	if len(rows) > 0 {
		if err := tx.Create(&rows).Error; err != nil {
			// Unique (solicitud_id, item_index) collision: another session
			// re-saved the same draft between our delete and insert.
			if isDuplicateKeyErr(err) {
				return utils.NewValidationError("items", "la solicitud fue modificada por otra sesión, reintente")
			}
			return err
		}
	}
	solicitud.TotalMonto = models.TotalSolicitado(rows)
	solicitud.Items = rows
	return tx.Model(&models.Solicitud{}).Where("id = ?", solicitud.ID).
		Update("total_monto", solicitud.TotalMonto).Error
}

// CreateDraft opens a new requisition owned by the actor. Items are
// optional at this stage.
func CreateDraft(ctx context.Context, actor models.Actor, header models.NewSolicitudHeader, items []models.NewSolicitudItem) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	solicitud := models.Solicitud{
		IdUsuario: actor.IdSpm,
		Status:    models.SolicitudEstadoDraft,
	}
	if err := aplicarHeader(&solicitud, header); err != nil {
		return nil, err
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&solicitud).Error; err != nil {
			config.LogError(logger, "solicitudWorkflow.go", "CreateDraft", "create solicitud", solicitud, err)
			return err
		}
		return reemplazarItems(tx, &solicitud, items)
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitud.ID)
}

// SaveDraft replaces the content of an existing draft. A stale id returns
// RecordNotFound; the caller's recovery is CreateDraft plus one retry.
func SaveDraft(ctx context.Context, actor models.Actor, solicitudId uint64, header models.NewSolicitudHeader, items []models.NewSolicitudItem) (*models.Solicitud, error) {
	db := config.GetDB()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		if solicitud.Status != models.SolicitudEstadoDraft {
			return utils.ErrorInvalidTransition
		}
		if err := aplicarHeader(&solicitud, header); err != nil {
			return err
		}
		if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitud.ID).Updates(map[string]interface{}{
			"centro":          solicitud.Centro,
			"sector":          solicitud.Sector,
			"justificacion":   solicitud.Justificacion,
			"centro_costos":   solicitud.CentroCostos,
			"almacen_virtual": solicitud.AlmacenVirtual,
			"criticidad":      solicitud.Criticidad,
			"fecha_necesidad": solicitud.FechaNecesidad,
		}).Error; err != nil {
			return err
		}
		return reemplazarItems(tx, &solicitud, items)
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

// DeleteDraft removes a draft and its items. Requester only.
func DeleteDraft(ctx context.Context, actor models.Actor, solicitudId uint64) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		if solicitud.Status != models.SolicitudEstadoDraft {
			return utils.ErrorInvalidTransition
		}
		if err := tx.Where("solicitud_id = ?", solicitudId).Delete(&models.SolicitudItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Solicitud{}, "id = ?", solicitudId).Error
	})
}

// Submit sends a requisition to approval. With solicitudId nil it creates
// and submits in one call; otherwise it re-submits an existing draft (or a
// solicitud whose cancellation was rejected). The approver is resolved
// from the requester's jefe > gerente1 > gerente2 chain.
func Submit(ctx context.Context, actor models.Actor, solicitudId *uint64, header models.NewSolicitudHeader, items []models.NewSolicitudItem) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if len(items) == 0 {
		return nil, utils.NewValidationError("items", "debe incluir al menos un ítem")
	}
	if err := validarCatalogos(ctx, header); err != nil {
		return nil, err
	}
	usuario, err := models.GetUsuario(ctx, actor.IdSpm)
	if err != nil {
		return nil, err
	}
	aprobador, err := models.ResolveAprobador(ctx, usuario)
	if err != nil {
		return nil, err
	}

	var id uint64
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var solicitud models.Solicitud
		if solicitudId == nil {
			solicitud = models.Solicitud{
				IdUsuario: actor.IdSpm,
				Status:    models.SolicitudEstadoDraft,
			}
			if err := aplicarHeader(&solicitud, header); err != nil {
				return err
			}
			if err := tx.Create(&solicitud).Error; err != nil {
				config.LogError(logger, "solicitudWorkflow.go", "Submit", "create solicitud", solicitud, err)
				return err
			}
		} else {
			if err := tx.First(&solicitud, "id = ?", *solicitudId).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return utils.ErrorRecordNotFound
				}
				return err
			}
			if !solicitud.EsDelSolicitante(actor) {
				return utils.ErrorNotAuthorized
			}
			if solicitud.Status != models.SolicitudEstadoDraft && solicitud.Status != models.SolicitudEstadoCancelacionRechazada {
				return utils.ErrorInvalidTransition
			}
			if err := aplicarHeader(&solicitud, header); err != nil {
				return err
			}
		}

		if err := reemplazarItems(tx, &solicitud, items); err != nil {
			return err
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"centro":          solicitud.Centro,
			"sector":          solicitud.Sector,
			"justificacion":   solicitud.Justificacion,
			"centro_costos":   solicitud.CentroCostos,
			"almacen_virtual": solicitud.AlmacenVirtual,
			"criticidad":      solicitud.Criticidad,
			"fecha_necesidad": solicitud.FechaNecesidad,
			"notificado_at":   nil,
		}
		if aprobador != nil {
			updates["aprobador_id"] = aprobador.IdSpm
			updates["notificado_at"] = now
			aprobadorId := aprobador.IdSpm
			solicitud.AprobadorId = &aprobadorId
			solicitud.NotificadoAt = &now
		} else {
			updates["aprobador_id"] = nil
			solicitud.AprobadorId = nil
		}
		if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitud.ID).Updates(updates).Error; err != nil {
			config.LogError(logger, "solicitudWorkflow.go", "Submit", "update header", solicitud.ID, err)
			return err
		}

		if err := cambiarStatus(tx, &solicitud, models.SolicitudEstadoPendienteDeAprobacion); err != nil {
			return err
		}

		if aprobador != nil {
			mensaje := fmt.Sprintf("Solicitud #%d pendiente de aprobación", solicitud.ID)
			if err := models.NotificarSolicitud(ctx, tx, "solicitud.pendiente_de_aprobacion", &solicitud, actor.IdSpm, []string{aprobador.IdSpm}, mensaje); err != nil {
				config.LogError(logger, "solicitudWorkflow.go", "Submit", "NotificarSolicitud", solicitud.ID, err)
				return err
			}
		}
		id = solicitud.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, id)
}

// DecideSolicitud records the approver's aprobar/rechazar decision.
// Only the assigned approver may decide, exactly once.
func DecideSolicitud(ctx context.Context, actor models.Actor, solicitudId uint64, accion models.DecisionAccion, comentario *string) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if comentario != nil && len(*comentario) > 500 {
		return nil, utils.NewValidationError("comentario", "no debe superar 500 caracteres")
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		switch solicitud.Status {
		case models.SolicitudEstadoPendienteDeAprobacion:
		case models.SolicitudEstadoAprobada, models.SolicitudEstadoRechazada:
			return utils.ErrorAlreadyResolved
		default:
			return utils.ErrorInvalidTransition
		}
		if solicitud.AprobadorId == nil || *solicitud.AprobadorId != actor.IdSpm {
			return utils.ErrorNotAuthorized
		}

		destino := models.SolicitudEstadoAprobada
		eventType := "solicitud.aprobada"
		mensaje := fmt.Sprintf("Solicitud #%d aprobada", solicitudId)
		if accion == models.DecisionAccionRechazar {
			destino = models.SolicitudEstadoRechazada
			eventType = "solicitud.rechazada"
			mensaje = fmt.Sprintf("Solicitud #%d rechazada", solicitudId)
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitudId).Updates(map[string]interface{}{
			"decidido_por":        actor.IdSpm,
			"decidido_at":         now,
			"decision_comentario": comentario,
		}).Error; err != nil {
			config.LogError(logger, "solicitudWorkflow.go", "DecideSolicitud", "record decision", solicitudId, err)
			return err
		}
		if err := cambiarStatus(tx, &solicitud, destino); err != nil {
			return err
		}

		// a cancel request left pendiente by data drift would block later
		// cancellations; close it alongside the decision
		if err := tx.Model(&models.SolicitudCancelacion{}).
			Where("solicitud_id = ? AND estado = ?", solicitudId, models.CancelacionEstadoPendiente).
			Updates(map[string]interface{}{
				"estado":              models.CancelacionEstadoRechazada,
				"decidido_por":        actor.IdSpm,
				"decision_comentario": "solicitud decidida",
				"decision_at":         now,
			}).Error; err != nil {
			return err
		}

		destinatarios := []string{solicitud.IdUsuario}
		if solicitud.PlannerId != nil {
			destinatarios = append(destinatarios, *solicitud.PlannerId)
		}
		if err := models.NotificarSolicitud(ctx, tx, eventType, &solicitud, actor.IdSpm, destinatarios, mensaje); err != nil {
			config.LogError(logger, "solicitudWorkflow.go", "DecideSolicitud", "NotificarSolicitud", solicitudId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

// FinalizeTratamiento closes the treatment. Holder only; every item must
// carry a decision.
func FinalizeTratamiento(ctx context.Context, actor models.Actor, solicitudId uint64) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		if solicitud.Status != models.SolicitudEstadoEnTratamiento {
			return utils.ErrorInvalidTransition
		}
		if !solicitud.EsHolder(actor) {
			return utils.ErrorNotOwner
		}

		var itemsCount int64
		if err := tx.Model(&models.SolicitudItem{}).Where("solicitud_id = ?", solicitudId).Count(&itemsCount).Error; err != nil {
			return err
		}
		decididos, err := models.CountDecididos(ctx, tx, solicitudId)
		if err != nil {
			return err
		}
		if decididos < itemsCount {
			return utils.ErrorIncompleteTreatment
		}

		if err := cambiarStatus(tx, &solicitud, models.SolicitudEstadoFinalizada); err != nil {
			return err
		}
		if err := models.RegistrarEvento(tx, solicitudId, actor.IdSpm, models.TratamientoEventoFinalizar, map[string]interface{}{
			"items":     itemsCount,
			"decididos": decididos,
		}); err != nil {
			return err
		}

		destinatarios := []string{solicitud.IdUsuario}
		if solicitud.AprobadorId != nil {
			destinatarios = append(destinatarios, *solicitud.AprobadorId)
		}
		mensaje := fmt.Sprintf("Solicitud #%d finalizada por planificador", solicitudId)
		if err := models.NotificarSolicitud(ctx, tx, "solicitud.finalizada", &solicitud, actor.IdSpm, destinatarios, mensaje); err != nil {
			config.LogError(logger, "solicitudWorkflow.go", "FinalizeTratamiento", "NotificarSolicitud", solicitudId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

// RechazarTratamiento is the planner's direct reject out of treatment.
func RechazarTratamiento(ctx context.Context, actor models.Actor, solicitudId uint64, motivo string) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	motivo = strings.TrimSpace(motivo)
	if len(motivo) < 3 || len(motivo) > 500 {
		return nil, utils.NewValidationError("motivo", "debe tener entre 3 y 500 caracteres")
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
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
		if solicitud.Status != models.SolicitudEstadoEnTratamiento {
			return utils.ErrorInvalidTransition
		}
		if !solicitud.EsHolder(actor) {
			return utils.ErrorNotOwner
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitudId).Updates(map[string]interface{}{
			"decidido_por":        actor.IdSpm,
			"decidido_at":         now,
			"decision_comentario": motivo,
		}).Error; err != nil {
			return err
		}
		if err := cambiarStatus(tx, &solicitud, models.SolicitudEstadoRechazada); err != nil {
			return err
		}
		if err := models.RegistrarEvento(tx, solicitudId, actor.IdSpm, models.TratamientoEventoRechazar, map[string]interface{}{
			"motivo": motivo,
		}); err != nil {
			return err
		}

		destinatarios := []string{solicitud.IdUsuario}
		if solicitud.AprobadorId != nil {
			destinatarios = append(destinatarios, *solicitud.AprobadorId)
		}
		mensaje := fmt.Sprintf("Solicitud #%d rechazada: %s", solicitudId, motivo)
		if err := models.NotificarSolicitud(ctx, tx, "solicitud.rechazada_tratamiento", &solicitud, actor.IdSpm, destinatarios, mensaje); err != nil {
			config.LogError(logger, "solicitudWorkflow.go", "RechazarTratamiento", "NotificarSolicitud", solicitudId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

/* listings */

// ListSolicitudes applies role-aware visibility: requesters see their own
// plus what awaits their approval; planners and admins see everything.
func ListSolicitudes(ctx context.Context, actor models.Actor, filter models.SolicitudFilter) (*models.PageResult[models.Solicitud], error) {
	db := config.GetDB()
	paginacion := models.NewPaginacion(filter.Page, filter.PageSize)

	dbCtx := db.WithContext(ctx).Model(&models.Solicitud{})
	if !actor.EsPlanificador() {
		dbCtx = dbCtx.Where("(id_usuario = ? OR (aprobador_id = ? AND status = ?))",
			actor.IdSpm, actor.IdSpm, models.SolicitudEstadoPendienteDeAprobacion)
	}
	dbCtx = models.ApplySolicitudFilter(dbCtx, filter)

	var total int64
	if err := dbCtx.Count(&total).Error; err != nil {
		return nil, err
	}

	var solicitudes []*models.Solicitud
	err := dbCtx.
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("item_index ASC") }).
		Order("updated_at DESC").
		Limit(paginacion.PageSize).Offset(paginacion.Offset()).
		Find(&solicitudes).Error
	if err != nil {
		return nil, err
	}

	return &models.PageResult[models.Solicitud]{
		Items:    solicitudes,
		Total:    total,
		Page:     paginacion.Page,
		PageSize: paginacion.PageSize,
	}, nil
}

// GetSolicitudParaActor loads the detail, restricted to the requester, the
// assigned approver and planner roles.
func GetSolicitudParaActor(ctx context.Context, actor models.Actor, solicitudId uint64) (*models.Solicitud, error) {
	solicitud, err := models.GetSolicitud(ctx, solicitudId)
	if err != nil {
		return nil, err
	}
	if solicitud.EsDelSolicitante(actor) || actor.EsPlanificador() {
		return solicitud, nil
	}
	if solicitud.AprobadorId != nil && *solicitud.AprobadorId == actor.IdSpm {
		return solicitud, nil
	}
	return nil, utils.ErrorNotAuthorized
}
