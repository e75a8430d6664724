package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"bitbucket.org/mmdatafocus/spm_backend/workflow"
	"github.com/gin-gonic/gin"
)

// GetQueue returns the planner's two lists: mias and pendientes.
func GetQueue(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var filter workflow.QueueFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondError(c, utils.ProcessValidationErrors(err))
		return
	}
	queue, err := workflow.Queue(c.Request.Context(), actor, filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, queue)
}

// TomarSolicitud claims a solicitud for the actor.
func TomarSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	solicitud, err := workflow.Claim(c.Request.Context(), actor, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// LiberarSolicitud returns a held solicitud to the pool.
func LiberarSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	solicitud, err := workflow.Release(c.Request.Context(), actor, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// GetTratamiento returns the treatment sheet.
func GetTratamiento(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	solicitud, err := workflow.GetTratamiento(c.Request.Context(), actor, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, gin.H{
		"solicitud":      solicitud,
		"total_aprobado": models.TotalAprobado(solicitud.Items, solicitud.Tratamientos),
	})
}

type tratamientoPayload struct {
	Items []models.NewTratamientoDecision `json:"items" binding:"required,min=1,dive"`
}

// GuardarTratamiento batch-upserts treatment decisions.
func GuardarTratamiento(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload tratamientoPayload
	if !bindJSON(c, &payload) {
		return
	}
	solicitud, err := workflow.RecordDecisiones(c.Request.Context(), actor, id, payload.Items)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// FinalizarSolicitud closes the treatment.
func FinalizarSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	solicitud, err := workflow.FinalizeTratamiento(c.Request.Context(), actor, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

type rechazoPayload struct {
	Motivo string `json:"motivo" binding:"required"`
}

// RechazarSolicitud is the planner's direct reject out of treatment.
func RechazarSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload rechazoPayload
	if !bindJSON(c, &payload) {
		return
	}
	solicitud, err := workflow.RechazarTratamiento(c.Request.Context(), actor, id, payload.Motivo)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// GetEstadisticas returns the per-planner KPI block.
func GetEstadisticas(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var filter workflow.EstadisticasFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondError(c, utils.ProcessValidationErrors(err))
		return
	}
	stats, err := workflow.GetPlannerEstadisticas(c.Request.Context(), actor, filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, stats)
}
