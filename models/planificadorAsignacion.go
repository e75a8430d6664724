package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"gorm.io/gorm"
)

func whereNullable(dbCtx *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return dbCtx.Where(column + " IS NULL")
	}
	return dbCtx.Where(column+" = ?", *value)
}

// PlanificadorAsignacion scopes which pending solicitudes a planner sees
// in the claim queue. A NULL column is a wildcard for that dimension.
type PlanificadorAsignacion struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	PlanificadorId string    `gorm:"size:64;index;not null" json:"planificador_id"`
	Centro         *string   `gorm:"size:100" json:"centro"`
	Sector         *string   `gorm:"size:100" json:"sector"`
	AlmacenVirtual *string   `gorm:"size:100" json:"almacen_virtual"`
	Prioridad      int       `gorm:"not null;default:0" json:"prioridad"`
	Activo         bool      `gorm:"not null;default:true;index" json:"activo"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (PlanificadorAsignacion) TableName() string {
	return "planificador_asignaciones"
}

// GetAsignacionesActivas returns the planner's active scopes ordered by
// prioridad.
func GetAsignacionesActivas(ctx context.Context, planificadorId string) ([]*PlanificadorAsignacion, error) {
	db := config.GetDB()
	var asignaciones []*PlanificadorAsignacion
	err := db.WithContext(ctx).
		Where("planificador_id = ? AND activo = 1", planificadorId).
		Order("prioridad DESC, id ASC").
		Find(&asignaciones).Error
	if err != nil {
		return nil, err
	}
	return asignaciones, nil
}

// Matches reports whether a solicitud falls inside this scope.
func (a PlanificadorAsignacion) Matches(s *Solicitud) bool {
	if a.Centro != nil && *a.Centro != s.Centro {
		return false
	}
	if a.Sector != nil && *a.Sector != s.Sector {
		return false
	}
	if a.AlmacenVirtual != nil && *a.AlmacenVirtual != s.AlmacenVirtual {
		return false
	}
	return true
}

// EnsureAsignacion idempotently seeds one scope row, used by init-db.
func EnsureAsignacion(ctx context.Context, planificadorId string, centro *string, sector *string, almacenVirtual *string, prioridad int) error {
	db := config.GetDB()
	var count int64
	dbCtx := db.WithContext(ctx).Model(&PlanificadorAsignacion{}).
		Where("planificador_id = ?", planificadorId)
	dbCtx = whereNullable(dbCtx, "centro", centro)
	dbCtx = whereNullable(dbCtx, "sector", sector)
	dbCtx = whereNullable(dbCtx, "almacen_virtual", almacenVirtual)
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	asignacion := PlanificadorAsignacion{
		PlanificadorId: planificadorId,
		Centro:         centro,
		Sector:         sector,
		AlmacenVirtual: almacenVirtual,
		Prioridad:      prioridad,
		Activo:         true,
	}
	return db.WithContext(ctx).Create(&asignacion).Error
}
