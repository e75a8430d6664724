package models

import (
	"context"

	"bitbucket.org/mmdatafocus/spm_backend/utils"
)

type CatalogCentro struct {
	ID          uint64  `gorm:"primaryKey" json:"id"`
	Codigo      string  `gorm:"size:100;not null;unique" json:"codigo"`
	Nombre      string  `gorm:"size:200" json:"nombre"`
	Descripcion *string `gorm:"size:500" json:"descripcion"`
	Notas       *string `gorm:"size:500" json:"notas"`
	Activo      bool    `gorm:"not null;default:true" json:"activo"`
}

func (CatalogCentro) TableName() string {
	return "catalog_centros"
}

type CatalogAlmacen struct {
	ID           uint64  `gorm:"primaryKey" json:"id"`
	Codigo       string  `gorm:"size:100;not null;unique" json:"codigo"`
	Nombre       string  `gorm:"size:200" json:"nombre"`
	CentroCodigo string  `gorm:"size:100;index" json:"centro_codigo"`
	Descripcion  *string `gorm:"size:500" json:"descripcion"`
	Activo       bool    `gorm:"not null;default:true" json:"activo"`
}

func (CatalogAlmacen) TableName() string {
	return "catalog_almacenes"
}

type CatalogSector struct {
	ID          uint64  `gorm:"primaryKey" json:"id"`
	Nombre      string  `gorm:"size:200;not null;unique" json:"nombre"`
	Descripcion *string `gorm:"size:500" json:"descripcion"`
	Activo      bool    `gorm:"not null;default:true" json:"activo"`
}

func (CatalogSector) TableName() string {
	return "catalog_sectores"
}

type CatalogRol struct {
	ID          uint64  `gorm:"primaryKey" json:"id"`
	Nombre      string  `gorm:"size:200;not null;unique" json:"nombre"`
	Descripcion *string `gorm:"size:500" json:"descripcion"`
	Activo      bool    `gorm:"not null;default:true" json:"activo"`
}

func (CatalogRol) TableName() string {
	return "catalog_roles"
}

type CatalogPuesto struct {
	ID          uint64  `gorm:"primaryKey" json:"id"`
	Nombre      string  `gorm:"size:200;not null;unique" json:"nombre"`
	Descripcion *string `gorm:"size:500" json:"descripcion"`
	Activo      bool    `gorm:"not null;default:true" json:"activo"`
}

func (CatalogPuesto) TableName() string {
	return "catalog_puestos"
}

/*
caches:
	CatalogCentroList
	CatalogAlmacenList
	CatalogSectorList
*/

// read catalog list, redis or db, cache result
func listCatalogo[T any](ctx context.Context) ([]*T, error) {
	results, err := utils.RetrieveRedisList[T]()
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[T](ctx, "activo = 1")
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[T](results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func ListCentros(ctx context.Context) ([]*CatalogCentro, error) {
	return listCatalogo[CatalogCentro](ctx)
}

func ListAlmacenes(ctx context.Context) ([]*CatalogAlmacen, error) {
	return listCatalogo[CatalogAlmacen](ctx)
}

func ListSectores(ctx context.Context) ([]*CatalogSector, error) {
	return listCatalogo[CatalogSector](ctx)
}

func ListRoles(ctx context.Context) ([]*CatalogRol, error) {
	return listCatalogo[CatalogRol](ctx)
}

func ListPuestos(ctx context.Context) ([]*CatalogPuesto, error) {
	return listCatalogo[CatalogPuesto](ctx)
}

// CentroActivo reports whether the codigo exists as an active center.
// An empty catalog accepts everything so a fresh install is usable
// before init-db seeds it.
func CentroActivo(ctx context.Context, codigo string) (bool, error) {
	centros, err := listCatalogo[CatalogCentro](ctx)
	if err != nil {
		return false, err
	}
	if len(centros) == 0 {
		return true, nil
	}
	for _, centro := range centros {
		if centro.Codigo == codigo {
			return true, nil
		}
	}
	return false, nil
}

func AlmacenActivo(ctx context.Context, codigo string) (bool, error) {
	almacenes, err := listCatalogo[CatalogAlmacen](ctx)
	if err != nil {
		return false, err
	}
	if len(almacenes) == 0 {
		return true, nil
	}
	for _, almacen := range almacenes {
		if almacen.Codigo == codigo {
			return true, nil
		}
	}
	return false, nil
}

func SectorActivo(ctx context.Context, nombre string) (bool, error) {
	sectores, err := listCatalogo[CatalogSector](ctx)
	if err != nil {
		return false, err
	}
	if len(sectores) == 0 {
		return true, nil
	}
	for _, sector := range sectores {
		if sector.Nombre == nombre {
			return true, nil
		}
	}
	return false, nil
}
