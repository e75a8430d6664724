package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Supply-execution timeline entry types (TratamientoLog.Tipo). Generic PO
// status updates log "po_<status>".
const (
	LogTipoNota             = "nota"
	LogTipoTrasladoCreado   = "traslado_creado"
	LogTipoTrasladoRecibido = "traslado_recibido"
	LogTipoSolpedCreada     = "solped_creada"
	LogTipoSolpedLiberada   = "solped_liberada"
	LogTipoPoEmitida        = "po_emitida"
	LogTipoPoEnviada        = "po_enviada"
)

const (
	TrasladoStatusPlanificado = "planificado"
	TrasladoStatusRecibido    = "recibido"

	SolpedStatusCreada   = "creada"
	SolpedStatusLiberada = "liberada"

	PurchaseOrderStatusEmitida = "emitida"
	PurchaseOrderStatusEnviada = "enviada"
)

// Traslado is a stock transfer raised for an item decided as stock.
type Traslado struct {
	ID             uint64          `gorm:"primaryKey" json:"id"`
	SolicitudId    uint64          `gorm:"index;not null" json:"solicitud_id"`
	ItemIndex      int             `gorm:"not null" json:"item_index"`
	Material       string          `gorm:"size:100;not null" json:"material"`
	Um             string          `gorm:"size:50" json:"um"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cantidad"`
	OrigenCentro   string          `gorm:"size:100;not null" json:"origen_centro"`
	OrigenAlmacen  string          `gorm:"size:100;not null" json:"origen_almacen"`
	OrigenLote     *string         `gorm:"size:100" json:"origen_lote"`
	DestinoCentro  string          `gorm:"size:100;not null" json:"destino_centro"`
	DestinoAlmacen string          `gorm:"size:100;not null" json:"destino_almacen"`
	Status         string          `gorm:"size:30;default:'planificado';index" json:"status"`
	Referencia     *string         `gorm:"size:100" json:"referencia"`
	CreatedBy      string          `gorm:"size:64;not null" json:"created_by"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Traslado) TableName() string {
	return "traslados"
}

type NewTraslado struct {
	SolicitudId    uint64          `json:"solicitud_id" binding:"required"`
	ItemIndex      int             `json:"item_index"`
	Material       string          `json:"material" binding:"required,min=1"`
	Um             string          `json:"um"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	OrigenCentro   string          `json:"origen_centro" binding:"required,min=1"`
	OrigenAlmacen  string          `json:"origen_almacen" binding:"required,min=1"`
	OrigenLote     *string         `json:"origen_lote"`
	DestinoCentro  string          `json:"destino_centro" binding:"required,min=1"`
	DestinoAlmacen string          `json:"destino_almacen" binding:"required,min=1"`
}

// Solped is a purchase requisition raised for an item decided as compra
// or equivalente.
type Solped struct {
	ID                uint64          `gorm:"primaryKey" json:"id"`
	SolicitudId       uint64          `gorm:"index;not null" json:"solicitud_id"`
	ItemIndex         int             `gorm:"not null" json:"item_index"`
	Material          string          `gorm:"size:100;not null" json:"material"`
	Um                string          `gorm:"size:50" json:"um"`
	Cantidad          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cantidad"`
	PrecioUnitarioEst decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"precio_unitario_est"`
	Status            string          `gorm:"size:30;default:'creada';index" json:"status"`
	Numero            *string         `gorm:"size:100" json:"numero"`
	CreatedBy         string          `gorm:"size:64;not null" json:"created_by"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Solped) TableName() string {
	return "solpeds"
}

type NewSolped struct {
	SolicitudId       uint64          `json:"solicitud_id" binding:"required"`
	ItemIndex         int             `json:"item_index"`
	Material          string          `json:"material" binding:"required,min=1"`
	Um                string          `json:"um"`
	Cantidad          decimal.Decimal `json:"cantidad"`
	PrecioUnitarioEst decimal.Decimal `json:"precio_unitario_est"`
}

// PurchaseOrder is the order emitted against a liberated solped.
type PurchaseOrder struct {
	ID              uint64          `gorm:"primaryKey" json:"id"`
	SolpedId        uint64          `gorm:"index;not null" json:"solped_id"`
	SolicitudId     uint64          `gorm:"index;not null" json:"solicitud_id"`
	ProveedorEmail  *string         `gorm:"size:150" json:"proveedor_email"`
	ProveedorNombre *string         `gorm:"size:200" json:"proveedor_nombre"`
	Numero          *string         `gorm:"size:100" json:"numero"`
	Status          string          `gorm:"size:30;default:'emitida';index" json:"status"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	Moneda          string          `gorm:"size:10;default:'USD'" json:"moneda"`
	CreatedBy       string          `gorm:"size:64;not null" json:"created_by"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

type NewPurchaseOrder struct {
	SolpedId        uint64  `json:"solped_id" binding:"required"`
	ProveedorEmail  *string `json:"proveedor_email" binding:"omitempty,email"`
	ProveedorNombre *string `json:"proveedor_nombre"`
	Numero          *string `json:"numero"`
	Moneda          string  `json:"moneda"`
}
