package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"github.com/gin-gonic/gin"
)

// GetCatalogos bundles the form catalogs (centros, almacenes, sectores,
// roles, puestos) in one response for the request form.
func GetCatalogos(c *gin.Context) {
	if _, ok := actorOrAbort(c); !ok {
		return
	}
	ctx := c.Request.Context()

	centros, err := models.ListCentros(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	almacenes, err := models.ListAlmacenes(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	sectores, err := models.ListSectores(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	roles, err := models.ListRoles(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	puestos, err := models.ListPuestos(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondOk(c, http.StatusOK, gin.H{
		"centros":   centros,
		"almacenes": almacenes,
		"sectores":  sectores,
		"roles":     roles,
		"puestos":   puestos,
	})
}
