package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Solicitud struct {
	ID                 uint64          `gorm:"primaryKey" json:"id"`
	IdUsuario          string          `gorm:"size:64;index;not null" json:"id_usuario"`
	Centro             string          `gorm:"size:100;index" json:"centro"`
	Sector             string          `gorm:"size:100;index" json:"sector"`
	Justificacion      string          `gorm:"type:text" json:"justificacion"`
	CentroCostos       string          `gorm:"size:100" json:"centro_costos"`
	AlmacenVirtual     string          `gorm:"size:100" json:"almacen_virtual"`
	Criticidad         string          `gorm:"size:50;default:'Normal'" json:"criticidad"`
	FechaNecesidad     *time.Time      `json:"fecha_necesidad"`
	Status             SolicitudEstado `gorm:"type:enum('draft','pendiente_de_aprobacion','aprobada','en_tratamiento','cancelacion_pendiente','cancelacion_rechazada','finalizada','rechazada','cancelada');default:'draft';index" json:"status"`
	AprobadorId        *string         `gorm:"size:64;index" json:"aprobador_id"`
	PlannerId          *string         `gorm:"size:64;index" json:"planner_id"`
	ClaimedAt          *time.Time      `json:"claimed_at"`
	TotalMonto         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_monto"`
	DecididoPor        *string         `gorm:"size:64" json:"decidido_por"`
	DecididoAt         *time.Time      `json:"decidido_at"`
	DecisionComentario *string         `gorm:"size:500" json:"decision_comentario"`
	NotificadoAt       *time.Time      `json:"notificado_at"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime;index" json:"updated_at"`

	Items         []SolicitudItem        `gorm:"foreignKey:SolicitudId" json:"items"`
	Tratamientos  []SolicitudTratamiento `gorm:"foreignKey:SolicitudId" json:"tratamientos,omitempty"`
	Cancelaciones []SolicitudCancelacion `gorm:"foreignKey:SolicitudId" json:"cancelaciones,omitempty"`
}

func (Solicitud) TableName() string {
	return "solicitudes"
}

type SolicitudItem struct {
	ID             uint64          `gorm:"primaryKey" json:"id"`
	SolicitudId    uint64          `gorm:"index;not null;uniqueIndex:idx_solicitud_item,priority:1" json:"solicitud_id"`
	ItemIndex      int             `gorm:"not null;uniqueIndex:idx_solicitud_item,priority:2" json:"item_index"`
	Codigo         string          `gorm:"size:100;not null" json:"codigo"`
	Descripcion    string          `gorm:"size:500" json:"descripcion"`
	Unidad         string          `gorm:"size:50" json:"unidad"`
	Cantidad       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cantidad"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"precio_unitario"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SolicitudItem) TableName() string {
	return "solicitud_items"
}

/* inputs */

type NewSolicitudHeader struct {
	Centro         string `json:"centro" binding:"required,min=1"`
	Sector         string `json:"sector" binding:"required,min=1"`
	Justificacion  string `json:"justificacion" binding:"required,min=5"`
	CentroCostos   string `json:"centro_costos" binding:"required,min=1"`
	AlmacenVirtual string `json:"almacen_virtual" binding:"required,min=1"`
	Criticidad     string `json:"criticidad"`
	FechaNecesidad string `json:"fecha_necesidad" binding:"required"`
}

type NewSolicitudItem struct {
	Codigo         string          `json:"codigo" binding:"required,min=1"`
	Descripcion    string          `json:"descripcion"`
	Unidad         string          `json:"unidad"`
	Cantidad       decimal.Decimal `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
}

// Validate applies the numeric bounds the binding tags cannot express.
func (item NewSolicitudItem) Validate(index int) error {
	if !item.Cantidad.IsPositive() {
		return utils.NewValidationError("cantidad", "debe ser mayor que cero (item %d)", index)
	}
	if item.PrecioUnitario.IsNegative() {
		return utils.NewValidationError("precio_unitario", "no puede ser negativo (item %d)", index)
	}
	return nil
}

/* listings */

type SolicitudFilter struct {
	Status         string `form:"status"`
	Centro         string `form:"centro"`
	Sector         string `form:"sector"`
	AlmacenVirtual string `form:"almacen_virtual"`
	Criticidad     string `form:"criticidad"`
	Q              string `form:"q"`
	Desde          string `form:"desde"`
	Hasta          string `form:"hasta"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
}

// ApplySolicitudFilter narrows a solicitudes query. The free-text filter
// matches the numeric id or a justificacion substring.
func ApplySolicitudFilter(dbCtx *gorm.DB, filter SolicitudFilter) *gorm.DB {
	if filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", filter.Status)
	}
	if filter.Centro != "" {
		dbCtx = dbCtx.Where("centro = ?", filter.Centro)
	}
	if filter.Sector != "" {
		dbCtx = dbCtx.Where("sector = ?", filter.Sector)
	}
	if filter.AlmacenVirtual != "" {
		dbCtx = dbCtx.Where("almacen_virtual = ?", filter.AlmacenVirtual)
	}
	if filter.Criticidad != "" {
		dbCtx = dbCtx.Where("criticidad = ?", filter.Criticidad)
	}
	if filter.Q != "" {
		dbCtx = dbCtx.Where("CAST(id AS CHAR) = ? OR justificacion LIKE ?", filter.Q, "%"+filter.Q+"%")
	}
	if desde, err := utils.ParseFecha(filter.Desde); filter.Desde != "" && err == nil {
		dbCtx = dbCtx.Where("updated_at >= ?", desde)
	}
	if hasta, err := utils.ParseFecha(filter.Hasta); filter.Hasta != "" && err == nil {
		dbCtx = dbCtx.Where("updated_at < ?", hasta.AddDate(0, 0, 1))
	}
	return dbCtx
}

// GetSolicitud loads the solicitud with its items, treatment rows and
// cancellation history. May return RecordNotFound.
func GetSolicitud(ctx context.Context, id uint64) (*Solicitud, error) {
	db := config.GetDB()
	var solicitud Solicitud
	err := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("item_index ASC") }).
		Preload("Tratamientos", func(tx *gorm.DB) *gorm.DB { return tx.Order("item_index ASC") }).
		Preload("Cancelaciones", func(tx *gorm.DB) *gorm.DB { return tx.Order("id DESC") }).
		First(&solicitud, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &solicitud, nil
}

// CancelacionActual returns the latest cancellation request, nil if none.
func (s *Solicitud) CancelacionActual() *SolicitudCancelacion {
	if len(s.Cancelaciones) == 0 {
		return nil
	}
	return &s.Cancelaciones[0]
}

// CancelacionPendiente returns the open cancellation request, nil if none.
func (s *Solicitud) CancelacionPendiente() *SolicitudCancelacion {
	for i := range s.Cancelaciones {
		if s.Cancelaciones[i].Estado == CancelacionEstadoPendiente {
			return &s.Cancelaciones[i]
		}
	}
	return nil
}

// EsDelSolicitante reports whether the actor created the solicitud.
func (s *Solicitud) EsDelSolicitante(actor Actor) bool {
	return s.IdUsuario == actor.IdSpm
}

// EsHolder reports whether the actor currently owns the claim.
func (s *Solicitud) EsHolder(actor Actor) bool {
	return s.PlannerId != nil && *s.PlannerId == actor.IdSpm
}
