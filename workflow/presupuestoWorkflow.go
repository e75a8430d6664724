package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CrearIncorporacion opens a budget-increase request. Heads and first-line
// managers only, and only for a centro they belong to.
func CrearIncorporacion(ctx context.Context, actor models.Actor, input models.NewIncorporacion) (*models.PresupuestoIncorporacion, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if !actor.PuedeSolicitarIncorporacion() {
		return nil, utils.ErrorNotAuthorized
	}
	if !input.Monto.IsPositive() {
		return nil, utils.NewValidationError("monto", "debe ser mayor que cero")
	}

	if !actor.EsAdmin() {
		usuario, err := models.GetUsuario(ctx, actor.IdSpm)
		if err != nil {
			return nil, err
		}
		propio := false
		for _, centro := range usuario.CentrosList() {
			if centro == input.Centro {
				propio = true
				break
			}
		}
		if !propio {
			return nil, utils.NewValidationError("centro", "no pertenece a sus centros asignados: %s", input.Centro)
		}
	}

	incorporacion := models.PresupuestoIncorporacion{
		Centro:        input.Centro,
		Sector:        input.Sector,
		Monto:         input.Monto,
		Motivo:        input.Motivo,
		Estado:        models.IncorporacionEstadoPendiente,
		SolicitanteId: actor.IdSpm,
	}
	if err := db.WithContext(ctx).Create(&incorporacion).Error; err != nil {
		config.LogError(logger, "presupuestoWorkflow.go", "CrearIncorporacion", "create incorporacion", incorporacion, err)
		return nil, err
	}
	return &incorporacion, nil
}

// ResolverIncorporacion decides a pendiente budget increase. The approver
// must hold the gerente2/admin gate and must not be the solicitante;
// approving credits the Presupuesto ledger in the same transaction.
func ResolverIncorporacion(ctx context.Context, actor models.Actor, incorporacionId uint64, accion models.DecisionAccion, comentario *string) (*models.PresupuestoIncorporacion, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	if !actor.PuedeAprobarIncorporacion() {
		return nil, utils.ErrorNotAuthorized
	}
	if comentario != nil && len(*comentario) > 500 {
		return nil, utils.NewValidationError("comentario", "no debe superar 500 caracteres")
	}

	var incorporacion models.PresupuestoIncorporacion
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&incorporacion, "id = ?", incorporacionId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrorRecordNotFound
			}
			return err
		}
		if incorporacion.SolicitanteId == actor.IdSpm {
			return utils.ErrorNotAuthorized
		}
		if incorporacion.Estado != models.IncorporacionEstadoPendiente {
			return utils.ErrorAlreadyResolved
		}

		estado := models.IncorporacionEstadoAprobada
		eventType := "incorporacion.aprobada"
		mensaje := fmt.Sprintf("Incorporación #%d aprobada", incorporacionId)
		if accion == models.DecisionAccionRechazar {
			estado = models.IncorporacionEstadoRechazada
			eventType = "incorporacion.rechazada"
			mensaje = fmt.Sprintf("Incorporación #%d rechazada", incorporacionId)
		}

		if estado == models.IncorporacionEstadoAprobada {
			if !incorporacion.Monto.IsPositive() {
				return utils.NewValidationError("monto", "debe ser mayor que cero")
			}
			sector := utils.DereferencePtr(incorporacion.Sector)
			if err := models.AcreditarPresupuesto(tx, incorporacion.Centro, sector, incorporacion.Monto); err != nil {
				config.LogError(logger, "presupuestoWorkflow.go", "ResolverIncorporacion", "AcreditarPresupuesto", incorporacionId, err)
				return err
			}
		}

		now := time.Now().UTC()
		if err := tx.Model(&models.PresupuestoIncorporacion{}).Where("id = ?", incorporacionId).Updates(map[string]interface{}{
			"estado":       estado,
			"aprobador_id": actor.IdSpm,
			"comentario":   comentario,
			"resolved_at":  now,
		}).Error; err != nil {
			config.LogError(logger, "presupuestoWorkflow.go", "ResolverIncorporacion", "update incorporacion", incorporacionId, err)
			return err
		}
		incorporacion.Estado = estado
		incorporacion.AprobadorId = &actor.IdSpm
		incorporacion.Comentario = comentario
		incorporacion.ResolvedAt = &now

		return models.PublishNotificacion(ctx, tx, eventType, "incorporacion", incorporacionId, nil,
			actor.IdSpm, []string{incorporacion.SolicitanteId}, mensaje, map[string]interface{}{
				"id":     incorporacion.ID,
				"centro": incorporacion.Centro,
				"sector": incorporacion.Sector,
				"monto":  incorporacion.Monto,
				"estado": estado,
			})
	})
	if err != nil {
		return nil, err
	}
	return &incorporacion, nil
}

/* dashboard */

type PresupuestoResumen struct {
	Lineas              int             `json:"lineas"`
	MontoTotal          decimal.Decimal `json:"monto_total"`
	UtilizadoTotal      decimal.Decimal `json:"utilizado_total"`
	SaldoTotal          decimal.Decimal `json:"saldo_total"`
	UltimaActualizacion *time.Time      `json:"ultima_actualizacion"`
}

type PresupuestoLinea struct {
	Centro    string              `json:"centro"`
	Sector    string              `json:"sector"`
	MontoUsd  decimal.Decimal     `json:"monto_usd"`
	SaldoUsd  decimal.Decimal     `json:"saldo_usd"`
	Utilizado decimal.Decimal     `json:"utilizado"`
	Avance    decimal.Decimal     `json:"avance"`
	Recientes []*models.Solicitud `json:"recientes"`
}

type IncorporacionesBlock struct {
	Mis            []*models.PresupuestoIncorporacion `json:"mis"`
	Pendientes     []*models.PresupuestoIncorporacion `json:"pendientes"`
	Todas          []*models.PresupuestoIncorporacion `json:"todas"`
	PuedeSolicitar bool                               `json:"puede_solicitar"`
	PuedeAprobar   bool                               `json:"puede_aprobar"`
}

type PresupuestoDashboard struct {
	Resumen         PresupuestoResumen   `json:"resumen"`
	Lineas          []PresupuestoLinea   `json:"lineas"`
	Historial       []*models.Solicitud  `json:"historial"`
	Vencimientos    []*models.Solicitud  `json:"vencimientos"`
	Incorporaciones IncorporacionesBlock `json:"incorporaciones"`
}

func avancePorcentaje(utilizado, monto decimal.Decimal) decimal.Decimal {
	if monto.IsZero() {
		return decimal.Zero
	}
	return utilizado.Div(monto).Mul(decimal.NewFromInt(100)).Round(2)
}

// MisPresupuestos assembles the budget dashboard for the actor's centros.
// Admins see every line; everyone else is scoped to their centros list.
func MisPresupuestos(ctx context.Context, actor models.Actor) (*PresupuestoDashboard, error) {
	db := config.GetDB()

	if !actor.EsGestorPresupuesto() {
		return nil, utils.ErrorNotAuthorized
	}
	usuario, err := models.GetUsuario(ctx, actor.IdSpm)
	if err != nil {
		return nil, err
	}
	centros := usuario.CentrosList()
	scoped := !actor.EsAdmin() && len(centros) > 0

	lineasQuery := db.WithContext(ctx).Model(&models.Presupuesto{})
	if scoped {
		lineasQuery = lineasQuery.Where("centro IN ?", centros)
	}
	var presupuestos []models.Presupuesto
	if err := lineasQuery.Order("centro ASC, sector ASC").Find(&presupuestos).Error; err != nil {
		return nil, err
	}

	dashboard := PresupuestoDashboard{
		Lineas:       make([]PresupuestoLinea, 0, len(presupuestos)),
		Historial:    make([]*models.Solicitud, 0),
		Vencimientos: make([]*models.Solicitud, 0),
	}

	resumen := PresupuestoResumen{Lineas: len(presupuestos)}
	for _, linea := range presupuestos {
		utilizado := linea.Utilizado()
		resumen.MontoTotal = resumen.MontoTotal.Add(linea.MontoUsd)
		resumen.SaldoTotal = resumen.SaldoTotal.Add(linea.SaldoUsd)
		resumen.UtilizadoTotal = resumen.UtilizadoTotal.Add(utilizado)
		if resumen.UltimaActualizacion == nil || linea.UpdatedAt.After(*resumen.UltimaActualizacion) {
			updatedAt := linea.UpdatedAt
			resumen.UltimaActualizacion = &updatedAt
		}

		var recientes []*models.Solicitud
		if err := db.WithContext(ctx).
			Where("centro = ? AND sector = ?", linea.Centro, linea.Sector).
			Order("updated_at DESC").Limit(10).
			Find(&recientes).Error; err != nil {
			return nil, err
		}
		dashboard.Lineas = append(dashboard.Lineas, PresupuestoLinea{
			Centro:    linea.Centro,
			Sector:    linea.Sector,
			MontoUsd:  linea.MontoUsd,
			SaldoUsd:  linea.SaldoUsd,
			Utilizado: utilizado,
			Avance:    avancePorcentaje(utilizado, linea.MontoUsd),
			Recientes: recientes,
		})
	}
	dashboard.Resumen = resumen

	historialQuery := db.WithContext(ctx).Model(&models.Solicitud{}).
		Where("status <> ?", models.SolicitudEstadoDraft)
	if scoped {
		historialQuery = historialQuery.Where("centro IN ?", centros)
	}
	if err := historialQuery.Order("updated_at DESC").Limit(50).Find(&dashboard.Historial).Error; err != nil {
		return nil, err
	}

	vencimientosQuery := db.WithContext(ctx).Model(&models.Solicitud{}).
		Where("fecha_necesidad IS NOT NULL AND fecha_necesidad >= ? AND status <> ?",
			time.Now().UTC().Truncate(24*time.Hour), models.SolicitudEstadoCancelada)
	if scoped {
		vencimientosQuery = vencimientosQuery.Where("centro IN ?", centros)
	}
	if err := vencimientosQuery.Order("fecha_necesidad ASC").Limit(20).Find(&dashboard.Vencimientos).Error; err != nil {
		return nil, err
	}

	block := IncorporacionesBlock{
		Mis:            make([]*models.PresupuestoIncorporacion, 0),
		Pendientes:     make([]*models.PresupuestoIncorporacion, 0),
		Todas:          make([]*models.PresupuestoIncorporacion, 0),
		PuedeSolicitar: actor.PuedeSolicitarIncorporacion(),
		PuedeAprobar:   actor.PuedeAprobarIncorporacion(),
	}
	if err := db.WithContext(ctx).Where("solicitante_id = ?", actor.IdSpm).
		Order("id DESC").Limit(20).Find(&block.Mis).Error; err != nil {
		return nil, err
	}
	if block.PuedeAprobar {
		if err := db.WithContext(ctx).Where("estado = ?", models.IncorporacionEstadoPendiente).
			Order("id ASC").Find(&block.Pendientes).Error; err != nil {
			return nil, err
		}
	}
	if err := db.WithContext(ctx).Order("id DESC").Limit(50).Find(&block.Todas).Error; err != nil {
		return nil, err
	}
	dashboard.Incorporaciones = block

	return &dashboard, nil
}
