package models

import (
	"log"

	"bitbucket.org/mmdatafocus/spm_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Usuario{},
		&Solicitud{}, &SolicitudItem{}, &SolicitudTratamiento{}, &SolicitudCancelacion{},
		&TratamientoEvento{}, &TratamientoLog{},
		&Presupuesto{}, &PresupuestoIncorporacion{},
		&Notificacion{}, &OutboxMessage{}, &OutboxEmail{},
		&PlanificadorAsignacion{},
		&Traslado{}, &Solped{}, &PurchaseOrder{},
		&CatalogCentro{}, &CatalogAlmacen{}, &CatalogSector{}, &CatalogRol{}, &CatalogPuesto{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
