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
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var estadosReclamables = []models.SolicitudEstado{
	models.SolicitudEstadoAprobada,
	models.SolicitudEstadoEnTratamiento,
}

// Claim grants the actor exclusive working rights over one solicitud.
// Ownership is decided by a single conditional UPDATE: planner_id must be
// unset and the status claimable. Exactly one of two concurrent claims can
// match the WHERE clause, so winners never need a retry loop. The first
// claim also performs aprobada > en_tratamiento.
func Claim(ctx context.Context, actor models.Actor, solicitudId uint64) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}

	// best effort: shrink the race window across instances; the CAS below
	// remains the source of truth when redis is absent.
	redisLock, err := utils.ObtainSolicitudLock(ctx, solicitudId, "claimQueue.go", "Claim")
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseSolicitudLock(ctx, redisLock)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		result := tx.Model(&models.Solicitud{}).
			Where("id = ? AND planner_id IS NULL AND status IN ?", solicitudId, estadosReclamables).
			Updates(map[string]interface{}{
				"planner_id": actor.IdSpm,
				"status":     models.SolicitudEstadoEnTratamiento,
				"claimed_at": now,
			})
		if result.Error != nil {
			config.LogError(logger, "claimQueue.go", "Claim", "claim CAS", solicitudId, result.Error)
			return result.Error
		}

		if result.RowsAffected == 0 {
			// Lost the CAS (or nothing to win). Re-read and classify.
			var solicitud models.Solicitud
			if err := tx.First(&solicitud, "id = ?", solicitudId).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return utils.ErrorRecordNotFound
				}
				return err
			}
			if solicitud.EsHolder(actor) && solicitud.Status == models.SolicitudEstadoEnTratamiento {
				// re-claim by the current holder is a no-op success
				return nil
			}
			if solicitud.PlannerId != nil {
				return utils.ErrorAlreadyClaimed
			}
			return utils.ErrorInvalidTransition
		}

		var solicitud models.Solicitud
		if err := tx.First(&solicitud, "id = ?", solicitudId).Error; err != nil {
			return err
		}
		if err := models.RegistrarEvento(tx, solicitudId, actor.IdSpm, models.TratamientoEventoTomar, map[string]interface{}{
			"claimed_at": now,
		}); err != nil {
			config.LogError(logger, "claimQueue.go", "Claim", "RegistrarEvento", solicitudId, err)
			return err
		}
		mensaje := fmt.Sprintf("Solicitud #%d tomada por planificador", solicitudId)
		if err := models.NotificarSolicitud(ctx, tx, "solicitud.tomada", &solicitud, actor.IdSpm, []string{solicitud.IdUsuario}, mensaje); err != nil {
			config.LogError(logger, "claimQueue.go", "Claim", "NotificarSolicitud", solicitudId, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

// Release clears the claim so the solicitud re-enters the pool. Holder
// only; status stays en_tratamiento.
func Release(ctx context.Context, actor models.Actor, solicitudId uint64) (*models.Solicitud, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Solicitud{}).
			Where("id = ? AND planner_id = ? AND status = ?", solicitudId, actor.IdSpm, models.SolicitudEstadoEnTratamiento).
			Updates(map[string]interface{}{
				"planner_id": nil,
				"claimed_at": nil,
			})
		if result.Error != nil {
			config.LogError(logger, "claimQueue.go", "Release", "release update", solicitudId, result.Error)
			return result.Error
		}
		if result.RowsAffected == 0 {
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
			return utils.ErrorNotOwner
		}
		return models.RegistrarEvento(tx, solicitudId, actor.IdSpm, models.TratamientoEventoLiberar, nil)
	})
	if err != nil {
		return nil, err
	}
	return models.GetSolicitud(ctx, solicitudId)
}

/* queue listing */

type QueueFilter struct {
	Centro           string `form:"centro"`
	Sector           string `form:"sector"`
	AlmacenVirtual   string `form:"almacen_virtual"`
	Criticidad       string `form:"criticidad"`
	Q                string `form:"q"`
	Desde            string `form:"desde"`
	Hasta            string `form:"hasta"`
	Limit            int    `form:"limit"`
	OffsetMias       int    `form:"offset_mias"`
	OffsetPendientes int    `form:"offset_pendientes"`
}

type QueueRow struct {
	models.Solicitud `gorm:"embedded"`
	ItemsCount       int64 `json:"items_count"`
	DecidedCount     int64 `json:"decided_count"`
}

type QueueResult struct {
	Mias       []*QueueRow `json:"mias"`
	Pendientes []*QueueRow `json:"pendientes"`
}

const queueCountsSelect = `solicitudes.*,
	(SELECT COUNT(*) FROM solicitud_items si WHERE si.solicitud_id = solicitudes.id) AS items_count,
	(SELECT COUNT(DISTINCT st.item_index) FROM solicitud_items_tratamiento st WHERE st.solicitud_id = solicitudes.id) AS decided_count`

// Queue returns the planner's two work lists: "mias" (claimed by the
// actor) and "pendientes" (claimable, narrowed to the actor's active
// assignment scopes; a planner without scope rows sees everything).
func Queue(ctx context.Context, actor models.Actor, filter QueueFilter) (*QueueResult, error) {
	db := config.GetDB()

	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	base := func() *gorm.DB {
		dbCtx := db.WithContext(ctx).Table("solicitudes").Select(queueCountsSelect)
		return models.ApplySolicitudFilter(dbCtx, models.SolicitudFilter{
			Centro:         filter.Centro,
			Sector:         filter.Sector,
			AlmacenVirtual: filter.AlmacenVirtual,
			Criticidad:     filter.Criticidad,
			Q:              filter.Q,
			Desde:          filter.Desde,
			Hasta:          filter.Hasta,
		})
	}

	var mias []*QueueRow
	err := base().
		Where("status = ? AND planner_id = ?", models.SolicitudEstadoEnTratamiento, actor.IdSpm).
		Order("updated_at DESC").
		Limit(limit).Offset(filter.OffsetMias).
		Find(&mias).Error
	if err != nil {
		return nil, err
	}

	pendientesQuery := base().
		Where("(status = ? OR (status = ? AND planner_id IS NULL))",
			models.SolicitudEstadoAprobada, models.SolicitudEstadoEnTratamiento)

	scopeCond, scopeVals, err := scopeConditions(ctx, actor)
	if err != nil {
		return nil, err
	}
	if scopeCond != "" {
		pendientesQuery = pendientesQuery.Where(scopeCond, scopeVals...)
	}

	var pendientes []*QueueRow
	err = pendientesQuery.
		Order("updated_at DESC").
		Limit(limit).Offset(filter.OffsetPendientes).
		Find(&pendientes).Error
	if err != nil {
		return nil, err
	}

	return &QueueResult{Mias: mias, Pendientes: pendientes}, nil
}

// scopeConditions turns the planner's assignment rows into one OR group.
// A row with all three columns NULL is a full wildcard and disables the
// scope restriction entirely, as does having no rows at all.
func scopeConditions(ctx context.Context, actor models.Actor) (string, []interface{}, error) {
	asignaciones, err := models.GetAsignacionesActivas(ctx, actor.IdSpm)
	if err != nil {
		return "", nil, err
	}
	if len(asignaciones) == 0 {
		return "", nil, nil
	}

	conds := make([]string, 0, len(asignaciones))
	vals := make([]interface{}, 0)
	for _, asignacion := range asignaciones {
		parts := make([]string, 0, 3)
		if asignacion.Centro != nil {
			parts = append(parts, "centro = ?")
			vals = append(vals, *asignacion.Centro)
		}
		if asignacion.Sector != nil {
			parts = append(parts, "sector = ?")
			vals = append(vals, *asignacion.Sector)
		}
		if asignacion.AlmacenVirtual != nil {
			parts = append(parts, "almacen_virtual = ?")
			vals = append(vals, *asignacion.AlmacenVirtual)
		}
		if len(parts) == 0 {
			return "", nil, nil
		}
		conds = append(conds, "("+strings.Join(parts, " AND ")+")")
	}
	return "(" + strings.Join(conds, " OR ") + ")", vals, nil
}

/* claim lease reaper (SPM_CLAIM_TTL_MINUTES, default off) */

// ReapExpiredClaims releases claims older than the TTL so abandoned work
// re-enters the pool. Each reap is audited as a liberar event.
func ReapExpiredClaims(ctx context.Context, db *gorm.DB, logger *logrus.Logger, ttl time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-ttl)
	reaped := 0
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var expiradas []models.Solicitud
		if err := tx.
			Where("status = ? AND planner_id IS NOT NULL AND claimed_at IS NOT NULL AND claimed_at < ?",
				models.SolicitudEstadoEnTratamiento, cutoff).
			Limit(100).
			Find(&expiradas).Error; err != nil {
			return err
		}
		for _, solicitud := range expiradas {
			plannerId := utils.DereferencePtr(solicitud.PlannerId)
			result := tx.Model(&models.Solicitud{}).
				Where("id = ? AND planner_id = ?", solicitud.ID, plannerId).
				Updates(map[string]interface{}{"planner_id": nil, "claimed_at": nil})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				continue
			}
			if err := models.RegistrarEvento(tx, solicitud.ID, plannerId, models.TratamientoEventoLiberar, map[string]interface{}{
				"reaped":     true,
				"claimed_at": solicitud.ClaimedAt,
			}); err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"field":        "ClaimReaper",
				"solicitud_id": solicitud.ID,
				"planner_id":   plannerId,
			}).Warn("claim lease expired, solicitud released")
			reaped++
		}
		return nil
	})
	return reaped, err
}

// RunClaimReaper polls for expired claims while the TTL flag is set.
func RunClaimReaper(ctx context.Context, db *gorm.DB, logger *logrus.Logger) {
	ttlMinutes := config.ClaimTTLMinutes()
	if ttlMinutes <= 0 {
		return
	}
	ttl := time.Duration(ttlMinutes) * time.Minute
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Minute):
		}
		if _, err := ReapExpiredClaims(ctx, db, logger, ttl); err != nil {
			config.LogError(logger, "claimQueue.go", "RunClaimReaper", "ReapExpiredClaims", ttlMinutes, err)
		}
	}
}
