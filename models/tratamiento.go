package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SolicitudTratamiento is the planner's decision layered on one requested
// item. It never replaces the item row; the original request stays intact.
type SolicitudTratamiento struct {
	ID                     uint64              `gorm:"primaryKey" json:"id"`
	SolicitudId            uint64              `gorm:"index;not null;uniqueIndex:idx_tratamiento_item,priority:1" json:"solicitud_id"`
	ItemIndex              int                 `gorm:"not null;uniqueIndex:idx_tratamiento_item,priority:2" json:"item_index"`
	Decision               TratamientoDecision `gorm:"type:enum('stock','compra','servicio','equivalente');not null" json:"decision"`
	CantidadAprobada       decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"cantidad_aprobada"`
	CodigoEquivalente      *string             `gorm:"size:100" json:"codigo_equivalente"`
	ProveedorSugerido      *string             `gorm:"size:200" json:"proveedor_sugerido"`
	PrecioUnitarioEstimado *decimal.Decimal    `gorm:"type:decimal(20,4)" json:"precio_unitario_estimado"`
	Comentario             *string             `gorm:"size:500" json:"comentario"`
	UpdatedBy              string              `gorm:"size:64" json:"updated_by"`
	UpdatedAt              time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SolicitudTratamiento) TableName() string {
	return "solicitud_items_tratamiento"
}

type NewTratamientoDecision struct {
	ItemIndex              int              `json:"item_index"`
	Decision               string           `json:"decision" binding:"required"`
	CantidadAprobada       decimal.Decimal  `json:"cantidad_aprobada"`
	CodigoEquivalente      *string          `json:"codigo_equivalente"`
	ProveedorSugerido      *string          `json:"proveedor_sugerido"`
	PrecioUnitarioEstimado *decimal.Decimal `json:"precio_unitario_estimado"`
	Comentario             *string          `json:"comentario"`
}

// Validate checks the decision enum and the bounds binding cannot express.
func (d NewTratamientoDecision) Validate() (TratamientoDecision, error) {
	decision, err := ParseTratamientoDecision(d.Decision)
	if err != nil {
		return "", utils.NewValidationError("decision", "inválida para item %d: %s", d.ItemIndex, d.Decision)
	}
	if !d.CantidadAprobada.IsPositive() {
		return "", utils.NewValidationError("cantidad_aprobada", "debe ser mayor que cero (item %d)", d.ItemIndex)
	}
	if decision == TratamientoDecisionEquivalente &&
		utils.DereferencePtr(d.CodigoEquivalente) == "" {
		return "", utils.NewValidationError("codigo_equivalente", "es obligatorio para decisión equivalente (item %d)", d.ItemIndex)
	}
	return decision, nil
}

// CountDecididos returns how many distinct item indexes already carry a
// decision. The finalize gate compares this against the item count.
func CountDecididos(ctx context.Context, tx *gorm.DB, solicitudId uint64) (int64, error) {
	var count int64
	err := tx.WithContext(ctx).Model(&SolicitudTratamiento{}).
		Where("solicitud_id = ?", solicitudId).
		Distinct("item_index").
		Count(&count).Error
	return count, err
}

// TratamientoEvento is the claim-queue and treatment audit trail.
type TratamientoEvento struct {
	ID          uint64                `gorm:"primaryKey" json:"id"`
	SolicitudId uint64                `gorm:"index;not null" json:"solicitud_id"`
	PlannerId   string                `gorm:"size:64;not null" json:"planner_id"`
	Tipo        TratamientoEventoTipo `gorm:"type:enum('tomar','liberar','editar_item','finalizar','rechazar');not null" json:"tipo"`
	Payload     []byte                `gorm:"type:json" json:"payload"`
	CreatedAt   time.Time             `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TratamientoEvento) TableName() string {
	return "solicitud_tratamiento_eventos"
}

// RegistrarEvento appends an audit event inside the caller's transaction.
func RegistrarEvento(tx *gorm.DB, solicitudId uint64, plannerId string, tipo TratamientoEventoTipo, payload interface{}) error {
	var payloadJSON []byte
	if payload != nil {
		encoded, err := utils.MarshalToJSON(payload)
		if err != nil {
			return err
		}
		payloadJSON = []byte(encoded)
	}
	evento := TratamientoEvento{
		SolicitudId: solicitudId,
		PlannerId:   plannerId,
		Tipo:        tipo,
		Payload:     payloadJSON,
	}
	return tx.Create(&evento).Error
}

// TratamientoLog is the supply-execution timeline (notes, transfers,
// purchase requisitions, purchase orders).
type TratamientoLog struct {
	ID          uint64    `gorm:"primaryKey" json:"id"`
	SolicitudId uint64    `gorm:"index;not null" json:"solicitud_id"`
	ItemIndex   *int      `json:"item_index"`
	ActorId     string    `gorm:"size:64;not null" json:"actor_id"`
	Tipo        string    `gorm:"size:50;not null" json:"tipo"`
	Estado      *string   `gorm:"size:50" json:"estado"`
	Payload     []byte    `gorm:"type:json" json:"payload"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (TratamientoLog) TableName() string {
	return "solicitud_tratamiento_log"
}

// RegistrarLog appends a supply-execution log entry inside the caller's
// transaction.
func RegistrarLog(tx *gorm.DB, solicitudId uint64, itemIndex *int, actorId string, tipo string, estado *string, payload interface{}) error {
	var payloadJSON []byte
	if payload != nil {
		encoded, err := utils.MarshalToJSON(payload)
		if err != nil {
			return err
		}
		payloadJSON = []byte(encoded)
	}
	entry := TratamientoLog{
		SolicitudId: solicitudId,
		ItemIndex:   itemIndex,
		ActorId:     actorId,
		Tipo:        tipo,
		Estado:      estado,
		Payload:     payloadJSON,
	}
	return tx.Create(&entry).Error
}
