package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/workflow"
	"github.com/gin-gonic/gin"
)

// GetMisPresupuestos returns the budget dashboard.
func GetMisPresupuestos(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	dashboard, err := workflow.MisPresupuestos(c.Request.Context(), actor)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, dashboard)
}

// CrearIncorporacion opens a budget-increase request.
func CrearIncorporacion(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var input models.NewIncorporacion
	if !bindJSON(c, &input) {
		return
	}
	incorporacion, err := workflow.CrearIncorporacion(c.Request.Context(), actor, input)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusCreated, incorporacion)
}

// ResolverIncorporacion decides a pendiente budget increase.
func ResolverIncorporacion(c *gin.Context) {
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
	incorporacion, err := workflow.ResolverIncorporacion(c.Request.Context(), actor, id, accion, payload.Comentario)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, incorporacion)
}
