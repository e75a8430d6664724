package controllers

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"github.com/gin-gonic/gin"
)

// GetNotificaciones returns the actor's feed, the unread count, and the
// solicitudes waiting on the actor's approval.
func GetNotificaciones(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	items, err := models.ListNotificaciones(c.Request.Context(), actor.IdSpm, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	noLeidas, err := models.CountNoLeidas(c.Request.Context(), actor.IdSpm)
	if err != nil {
		RespondError(c, err)
		return
	}

	db := config.GetDB()
	var pendientes []*models.Solicitud
	err = db.WithContext(c.Request.Context()).
		Where("aprobador_id = ? AND status = ?", actor.IdSpm, models.SolicitudEstadoPendienteDeAprobacion).
		Order("updated_at DESC").
		Limit(50).
		Find(&pendientes).Error
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondOk(c, http.StatusOK, gin.H{
		"items":              items,
		"no_leidas":          noLeidas,
		"pendientes_aprobar": pendientes,
	})
}

type marcarPayload struct {
	Ids     []uint64 `json:"ids"`
	MarkAll bool     `json:"mark_all"`
}

// MarcarNotificaciones marks the given ids (or everything) read and
// returns how many remain unread.
func MarcarNotificaciones(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var payload marcarPayload
	if !bindJSON(c, &payload) {
		return
	}
	restantes, err := models.MarcarLeidas(c.Request.Context(), actor.IdSpm, payload.Ids, payload.MarkAll)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, gin.H{"no_leidas": restantes})
}
