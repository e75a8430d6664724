package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"gorm.io/gorm"
)

type Usuario struct {
	IdSpm          string    `gorm:"primaryKey;size:64" json:"id_spm"`
	Nombre         string    `gorm:"size:200;not null" json:"nombre"`
	Rol            string    `gorm:"size:100" json:"rol"`
	Contrasena     string    `gorm:"size:255;not null" json:"-"`
	Mail           *string   `gorm:"size:150" json:"mail"`
	Posicion       string    `gorm:"size:150" json:"posicion"`
	Sector         string    `gorm:"size:100" json:"sector"`
	Centros        string    `gorm:"size:500" json:"centros"`
	Jefe           *string   `gorm:"size:64" json:"jefe"`
	Gerente1       *string   `gorm:"size:64" json:"gerente1"`
	Gerente2       *string   `gorm:"size:64" json:"gerente2"`
	Telefono       string    `gorm:"size:50" json:"telefono"`
	EstadoRegistro string    `gorm:"size:30;default:'activo'" json:"estado_registro"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Usuario) TableName() string {
	return "usuarios"
}

/*
caches:
	Usuario:$idSpm
*/

func (usuario Usuario) RemoveInstanceRedis() error {
	return utils.RemoveRedisItem[Usuario](usuario.IdSpm)
}

// CentrosList splits the comma-separated centros column.
func (usuario Usuario) CentrosList() []string {
	centros := make([]string, 0)
	for _, centro := range strings.Split(usuario.Centros, ",") {
		centro = strings.TrimSpace(centro)
		if centro != "" {
			centros = append(centros, centro)
		}
	}
	return centros
}

// Actor is the identity threaded through every workflow call, built from
// the JWT claims by the auth middleware.
type Actor struct {
	IdSpm    string `json:"id_spm"`
	Rol      string `json:"rol"`
	Posicion string `json:"posicion"`
}

func (usuario Usuario) AsActor() Actor {
	return Actor{IdSpm: usuario.IdSpm, Rol: usuario.Rol, Posicion: usuario.Posicion}
}

func (a Actor) EsAdmin() bool {
	return utils.ContainsNormalized(a.Rol, "administrador") || utils.ContainsNormalized(a.Rol, "admin")
}

// EsPlanificador gates the planner surface (claim queue, treatment,
// supply execution).
func (a Actor) EsPlanificador() bool {
	return utils.ContainsNormalized(a.Rol, "planificador") ||
		utils.ContainsNormalized(a.Rol, "planner") ||
		a.EsAdmin()
}

// PuedeSolicitarIncorporacion gates budget-increase requests: heads and
// first-line managers.
func (a Actor) PuedeSolicitarIncorporacion() bool {
	return utils.ContainsNormalized(a.Posicion, "jefe") ||
		utils.ContainsNormalized(a.Posicion, "gerente1") ||
		utils.ContainsNormalized(a.Rol, "gerente1")
}

// PuedeAprobarIncorporacion gates budget-increase approval: admins and
// second-line managers.
func (a Actor) PuedeAprobarIncorporacion() bool {
	return a.EsAdmin() ||
		utils.ContainsNormalized(a.Posicion, "gerente2") ||
		utils.ContainsNormalized(a.Rol, "gerente2")
}

// EsGestorPresupuesto gates the budget dashboard.
func (a Actor) EsGestorPresupuesto() bool {
	return a.PuedeSolicitarIncorporacion() ||
		a.PuedeAprobarIncorporacion() ||
		utils.ContainsNormalized(a.Posicion, "gerente") ||
		utils.ContainsNormalized(a.Rol, "presupuesto")
}

// get usuario, redis or db
func GetUsuario(ctx context.Context, idSpm string) (*Usuario, error) {
	usuario, err := utils.RetrieveRedis[Usuario](idSpm)
	if err != nil {
		return nil, err
	}
	if usuario == nil {
		usuario, err = utils.FetchModelWhere[Usuario](ctx, "id_spm = ?", idSpm)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedis[Usuario](usuario, idSpm); err != nil {
			return nil, err
		}
	}
	return usuario, nil
}

// ResolveAprobador walks the requester's jefe > gerente1 > gerente2 chain
// and returns the first reference that exists as a usuario. Nil when the
// chain is empty or nobody matches. Only a missing candidate moves the walk
// forward; any other lookup failure aborts, a dangling aprobador_id written
// on a transient error would be unapprovable.
func ResolveAprobador(ctx context.Context, requester *Usuario) (*Usuario, error) {
	db := config.GetDB()
	for _, ref := range []*string{requester.Jefe, requester.Gerente1, requester.Gerente2} {
		idSpm := strings.TrimSpace(utils.DereferencePtr(ref))
		if idSpm == "" {
			continue
		}
		var aprobador Usuario
		err := db.WithContext(ctx).Where("id_spm = ?", idSpm).First(&aprobador).Error
		if err == nil {
			return &aprobador, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}
