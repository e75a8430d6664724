package workflow

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// tratamientoUpsertColumns are the fields a re-submitted decision may
// overwrite. The (solicitud_id, item_index) key never changes.
var tratamientoUpsertColumns = []string{
	"decision",
	"cantidad_aprobada",
	"codigo_equivalente",
	"proveedor_sugerido",
	"precio_unitario_estimado",
	"comentario",
	"updated_by",
	"updated_at",
}

// RecordDecisiones upserts a batch of treatment decisions for the holder.
// Re-submitting an item_index overwrites the previous decision; the
// solicitud total flips to approved mode in the same transaction.
func RecordDecisiones(ctx context.Context, actor models.Actor, solicitudId uint64, decisiones []models.NewTratamientoDecision) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if len(decisiones) == 0 {
		return nil, utils.NewValidationError("decisiones", "debe incluir al menos una decisión")
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

		var items []models.SolicitudItem
		if err := tx.Where("solicitud_id = ?", solicitudId).Order("item_index ASC").Find(&items).Error; err != nil {
			return err
		}
		indexes := make(map[int]bool, len(items))
		for _, item := range items {
			indexes[item.ItemIndex] = true
		}

		rows := make([]models.SolicitudTratamiento, 0, len(decisiones))
		for _, entry := range decisiones {
			decision, err := entry.Validate()
			if err != nil {
				return err
			}
			if !indexes[entry.ItemIndex] {
				return utils.NewValidationError("item_index", "el ítem %d no existe en la solicitud", entry.ItemIndex)
			}
			rows = append(rows, models.SolicitudTratamiento{
				SolicitudId:            solicitudId,
				ItemIndex:              entry.ItemIndex,
				Decision:               decision,
				CantidadAprobada:       entry.CantidadAprobada,
				CodigoEquivalente:      entry.CodigoEquivalente,
				ProveedorSugerido:      entry.ProveedorSugerido,
				PrecioUnitarioEstimado: entry.PrecioUnitarioEstimado,
				Comentario:             entry.Comentario,
				UpdatedBy:              actor.IdSpm,
			})
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "solicitud_id"}, {Name: "item_index"}},
			DoUpdates: clause.AssignmentColumns(tratamientoUpsertColumns),
		}).Create(&rows).Error; err != nil {
			config.LogError(logger, "tratamientoWorkflow.go", "RecordDecisiones", "upsert tratamiento", solicitudId, err)
			return err
		}

		for _, entry := range decisiones {
			if err := models.RegistrarEvento(tx, solicitudId, actor.IdSpm, models.TratamientoEventoEditarItem, map[string]interface{}{
				"item_index":        entry.ItemIndex,
				"decision":          entry.Decision,
				"cantidad_aprobada": entry.CantidadAprobada,
			}); err != nil {
				return err
			}
		}

		var tratamientos []models.SolicitudTratamiento
		if err := tx.Where("solicitud_id = ?", solicitudId).Find(&tratamientos).Error; err != nil {
			return err
		}
		totalAprobado := models.TotalAprobado(items, tratamientos)
		if err := tx.Model(&models.Solicitud{}).Where("id = ?", solicitudId).
			Update("total_monto", totalAprobado).Error; err != nil {
			config.LogError(logger, "tratamientoWorkflow.go", "RecordDecisiones", "update total", solicitudId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

// GetTratamiento loads the solicitud with its treatment sheet for a
// planner. Any planner may look; only the holder may write.
func GetTratamiento(ctx context.Context, actor models.Actor, solicitudId uint64) (*models.Solicitud, error) {
	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	return models.GetSolicitud(ctx, solicitudId)
}
