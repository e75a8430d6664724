package controllers

import (
	"net/http"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/workflow"
	"github.com/gin-gonic/gin"
)

// GetTimeline returns the supply-execution log of one solicitud.
func GetTimeline(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	entries, err := workflow.GetTimeline(c.Request.Context(), actor, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, entries)
}

type notaPayload struct {
	Texto     string `json:"texto" binding:"required"`
	ItemIndex *int   `json:"item_index"`
}

// AgregarNota appends a free-text note to the timeline.
func AgregarNota(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload notaPayload
	if !bindJSON(c, &payload) {
		return
	}
	if err := workflow.AgregarNota(c.Request.Context(), actor, id, payload.Texto, payload.ItemIndex); err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusCreated, gin.H{"agregada": true})
}

/* traslados */

func CrearTraslado(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var input models.NewTraslado
	if !bindJSON(c, &input) {
		return
	}
	traslado, err := workflow.CrearTraslado(c.Request.Context(), actor, input)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusCreated, traslado)
}

type estadoPayload struct {
	Status     string  `json:"status" binding:"required"`
	Referencia *string `json:"referencia"`
	Numero     *string `json:"numero"`
}

func ActualizarTraslado(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload estadoPayload
	if !bindJSON(c, &payload) {
		return
	}
	traslado, err := workflow.ActualizarTraslado(c.Request.Context(), actor, id, payload.Status, payload.Referencia)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, traslado)
}

/* solpeds */

func CrearSolped(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var input models.NewSolped
	if !bindJSON(c, &input) {
		return
	}
	solped, err := workflow.CrearSolped(c.Request.Context(), actor, input)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusCreated, solped)
}

func ActualizarSolped(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload estadoPayload
	if !bindJSON(c, &payload) {
		return
	}
	solped, err := workflow.ActualizarSolped(c.Request.Context(), actor, id, payload.Status, payload.Numero)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, solped)
}

/* purchase orders */

func CrearPurchaseOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var input models.NewPurchaseOrder
	if !bindJSON(c, &input) {
		return
	}
	po, err := workflow.CrearPurchaseOrder(c.Request.Context(), actor, input)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusCreated, po)
}

// EnviarPurchaseOrder queues the order mail and flips the PO to enviada.
func EnviarPurchaseOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	po, err := workflow.EnviarPurchaseOrder(c.Request.Context(), actor, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, po)
}

func ActualizarPurchaseOrder(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var payload estadoPayload
	if !bindJSON(c, &payload) {
		return
	}
	po, err := workflow.ActualizarPurchaseOrder(c.Request.Context(), actor, id, payload.Status)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, po)
}

// FlushOutboxEmails pushes every queued mail immediately (admin recovery).
func FlushOutboxEmails(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	sent, err := workflow.FlushQueuedEmails(c.Request.Context(), actor)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, gin.H{"enviados": sent})
}
