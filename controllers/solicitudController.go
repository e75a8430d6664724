package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"bitbucket.org/mmdatafocus/spm_backend/workflow"
	"github.com/gin-gonic/gin"
)

// solicitudPayload is the flat body shared by the draft and submit
// endpoints: header fields plus the item list.
type solicitudPayload struct {
	models.NewSolicitudHeader
	Items []models.NewSolicitudItem `json:"items" binding:"omitempty,dive"`
}

type draftPayload struct {
	Id *uint64 `json:"id"`
	solicitudPayload
}

type decisionPayload struct {
	Accion     string  `json:"accion" binding:"required"`
	Comentario *string `json:"comentario"`
}

type cancelPayload struct {
	Motivo *string `json:"motivo"`
}

func parseAccion(raw string) (models.DecisionAccion, error) {
	accion, err := models.ParseDecisionAccion(raw)
	if err != nil {
		return "", utils.NewValidationError("accion", "inválida: %s", raw)
	}
	return accion, nil
}

// CrearSolicitud creates and submits in one call.
func CrearSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var payload solicitudPayload
	if !bindJSON(c, &payload) {
		return
	}
	solicitud, err := workflow.Submit(c.Request.Context(), actor, nil, payload.NewSolicitudHeader, payload.Items)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusCreated, solicitud)
}

// GuardarDraft creates a draft, or replaces one when the body carries an
// id. A stale id answers 404 and the client recreates.
func GuardarDraft(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var payload draftPayload
	if !bindJSON(c, &payload) {
		return
	}

	var solicitud *models.Solicitud
	var err error
	if payload.Id != nil {
		solicitud, err = workflow.SaveDraft(c.Request.Context(), actor, *payload.Id, payload.NewSolicitudHeader, payload.Items)
	} else {
		solicitud, err = workflow.CreateDraft(c.Request.Context(), actor, payload.NewSolicitudHeader, payload.Items)
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	status := http.StatusOK
	if payload.Id == nil {
		status = http.StatusCreated
	}
	RespondOk(c, status, solicitud)
}

// SubmitSolicitud sends an existing draft (or a solicitud whose
// cancellation was rejected) to approval with the full payload.
func SubmitSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload solicitudPayload
	if !bindJSON(c, &payload) {
		return
	}
	solicitud, err := workflow.Submit(c.Request.Context(), actor, &id, payload.NewSolicitudHeader, payload.Items)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// ListSolicitudes lists with role-aware visibility and shared filters.
func ListSolicitudes(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var filter models.SolicitudFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		RespondError(c, utils.ProcessValidationErrors(err))
		return
	}
	page, err := workflow.ListSolicitudes(c.Request.Context(), actor, filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, page)
}

// GetSolicitudDetail returns the solicitud with both total modes computed
// from the current items and treatment sheet.
func GetSolicitudDetail(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	solicitud, err := workflow.GetSolicitudParaActor(c.Request.Context(), actor, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, gin.H{
		"solicitud":        solicitud,
		"total_solicitado": models.TotalSolicitado(solicitud.Items),
		"total_aprobado":   models.TotalAprobado(solicitud.Items, solicitud.Tratamientos),
	})
}

// DecidirSolicitud records the approver's decision.
func DecidirSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload decisionPayload
	if !bindJSON(c, &payload) {
		return
	}
	accion, err := parseAccion(payload.Accion)
	if err != nil {
		RespondError(c, err)
		return
	}
	solicitud, err := workflow.DecideSolicitud(c.Request.Context(), actor, id, accion, payload.Comentario)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// CancelarSolicitud requests (or directly performs) the cancellation.
func CancelarSolicitud(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload cancelPayload
	if !bindJSON(c, &payload) {
		return
	}
	solicitud, err := workflow.SolicitarCancelacion(c.Request.Context(), actor, id, payload.Motivo)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// DecidirCancelacion resolves a pendiente cancellation.
func DecidirCancelacion(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload decisionPayload
	if !bindJSON(c, &payload) {
		return
	}
	accion, err := parseAccion(payload.Accion)
	if err != nil {
		RespondError(c, err)
		return
	}
	solicitud, err := workflow.ResolverCancelacion(c.Request.Context(), actor, id, accion, payload.Comentario)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solicitud)
}

// EliminarDraft removes a draft.
func EliminarDraft(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := workflow.DeleteDraft(c.Request.Context(), actor, id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, gin.H{"deleted": true})
}
