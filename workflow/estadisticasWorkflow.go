package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EstadisticasFilter struct {
	Desde string `form:"desde"`
	Hasta string `form:"hasta"`
}

type CentroRanking struct {
	Centro     string          `json:"centro"`
	Cerradas   int64           `json:"cerradas"`
	TotalMonto decimal.Decimal `json:"total_monto"`
}

type PlannerEstadisticas struct {
	EnTratamiento int64           `json:"en_tratamiento"`
	Finalizadas   int64           `json:"finalizadas"`
	Rechazadas    int64           `json:"rechazadas"`
	HorasPromedio float64         `json:"horas_promedio_tratamiento"`
	TopCentros    []CentroRanking `json:"top_centros"`
}

var estadosCerrados = []models.SolicitudEstado{
	models.SolicitudEstadoFinalizada,
	models.SolicitudEstadoRechazada,
}

// GetPlannerEstadisticas builds the per-planner KPI block: current
// holdings, closed counts, mean treatment time and the busiest centros.
func GetPlannerEstadisticas(ctx context.Context, actor models.Actor, filter EstadisticasFilter) (*PlannerEstadisticas, error) {
	if !actor.EsPlanificador() {
		return nil, utils.ErrorNotAuthorized
	}
	db := config.GetDB()

	base := func() *gorm.DB {
		dbCtx := db.WithContext(ctx).Model(&models.Solicitud{}).Where("planner_id = ?", actor.IdSpm)
		if desde, err := utils.ParseFecha(filter.Desde); filter.Desde != "" && err == nil {
			dbCtx = dbCtx.Where("updated_at >= ?", desde)
		}
		if hasta, err := utils.ParseFecha(filter.Hasta); filter.Hasta != "" && err == nil {
			dbCtx = dbCtx.Where("updated_at < ?", hasta.AddDate(0, 0, 1))
		}
		return dbCtx
	}

	stats := PlannerEstadisticas{TopCentros: make([]CentroRanking, 0, 5)}
	if err := base().Where("status = ?", models.SolicitudEstadoEnTratamiento).Count(&stats.EnTratamiento).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.SolicitudEstadoFinalizada).Count(&stats.Finalizadas).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", models.SolicitudEstadoRechazada).Count(&stats.Rechazadas).Error; err != nil {
		return nil, err
	}

	// treatment time runs from the claim to the closing update
	var promedio struct {
		Horas *float64
	}
	err := base().Where("status IN ? AND claimed_at IS NOT NULL", estadosCerrados).
		Select("AVG(TIMESTAMPDIFF(SECOND, claimed_at, updated_at)) / 3600.0 AS horas").
		Scan(&promedio).Error
	if err != nil {
		return nil, err
	}
	if promedio.Horas != nil {
		stats.HorasPromedio = *promedio.Horas
	}

	err = base().Where("status IN ?", estadosCerrados).
		Select("centro, COUNT(*) AS cerradas, COALESCE(SUM(total_monto), 0) AS total_monto").
		Group("centro").
		Order("cerradas DESC").
		Limit(5).
		Scan(&stats.TopCentros).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
