package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Presupuesto is the budget ledger per (centro, sector). Sector "" holds
// the center-wide line.
type Presupuesto struct {
	Centro    string          `gorm:"primaryKey;size:100" json:"centro"`
	Sector    string          `gorm:"primaryKey;size:100" json:"sector"`
	MontoUsd  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"monto_usd"`
	SaldoUsd  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"saldo_usd"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Presupuesto) TableName() string {
	return "presupuestos"
}

// Utilizado is the consumed part of the line, never negative.
func (p Presupuesto) Utilizado() decimal.Decimal {
	utilizado := p.MontoUsd.Sub(p.SaldoUsd)
	if utilizado.IsNegative() {
		return decimal.Zero
	}
	return utilizado
}

// AcreditarPresupuesto adds monto to both columns of the (centro, sector)
// line, inserting it when absent. Runs in the caller's transaction so the
// credit commits atomically with the incorporación estado flip.
func AcreditarPresupuesto(tx *gorm.DB, centro string, sector string, monto decimal.Decimal) error {
	linea := Presupuesto{
		Centro:   centro,
		Sector:   sector,
		MontoUsd: monto,
		SaldoUsd: monto,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "centro"}, {Name: "sector"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"monto_usd": gorm.Expr("monto_usd + ?", monto),
			"saldo_usd": gorm.Expr("saldo_usd + ?", monto),
		}),
	}).Create(&linea).Error
}

type PresupuestoIncorporacion struct {
	ID            uint64              `gorm:"primaryKey" json:"id"`
	Centro        string              `gorm:"size:100;index;not null" json:"centro"`
	Sector        *string             `gorm:"size:100" json:"sector"`
	Monto         decimal.Decimal     `gorm:"type:decimal(20,4);not null" json:"monto"`
	Motivo        *string             `gorm:"size:500" json:"motivo"`
	Estado        IncorporacionEstado `gorm:"type:enum('pendiente','aprobada','rechazada');default:'pendiente';index" json:"estado"`
	SolicitanteId string              `gorm:"size:64;index;not null" json:"solicitante_id"`
	AprobadorId   *string             `gorm:"size:64" json:"aprobador_id"`
	Comentario    *string             `gorm:"size:500" json:"comentario"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
	ResolvedAt    *time.Time          `json:"resolved_at"`
}

func (PresupuestoIncorporacion) TableName() string {
	return "presupuesto_incorporaciones"
}

type NewIncorporacion struct {
	Centro string          `json:"centro" binding:"required,min=1"`
	Sector *string         `json:"sector"`
	Monto  decimal.Decimal `json:"monto"`
	Motivo *string         `json:"motivo" binding:"omitempty,max=500"`
}
