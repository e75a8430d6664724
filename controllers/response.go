package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/spm_backend/config"
	"bitbucket.org/mmdatafocus/spm_backend/middlewares"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/gin-gonic/gin"
)

// All responses share one envelope: {"ok":true,"data":...} on success,
// {"ok":false,"error":{"code","message"}} on failure. The code is stable;
// the message is what the UI shows.

func RespondOk(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"ok": true, "data": data})
}

func respondErrorCode(c *gin.Context, status int, code string, message string) {
	c.JSON(status, gin.H{
		"ok":    false,
		"error": gin.H{"code": code, "message": message},
	})
}

// RespondError translates the domain error taxonomy to HTTP. Anything
// outside the taxonomy is a 500 and gets logged with the route.
func RespondError(c *gin.Context, err error) {
	var validationError *utils.ValidationError
	switch {
	case errors.As(err, &validationError):
		respondErrorCode(c, http.StatusBadRequest, "validacion", validationError.Error())
	case errors.Is(err, utils.ErrorNotAuthorized):
		respondErrorCode(c, http.StatusForbidden, "no_autorizado", err.Error())
	case errors.Is(err, utils.ErrorNotOwner):
		respondErrorCode(c, http.StatusForbidden, "no_es_titular", err.Error())
	case errors.Is(err, utils.ErrorRecordNotFound):
		respondErrorCode(c, http.StatusNotFound, "no_encontrado", "recurso no encontrado")
	case errors.Is(err, utils.ErrorInvalidTransition):
		respondErrorCode(c, http.StatusConflict, "transicion_invalida", err.Error())
	case errors.Is(err, utils.ErrorAlreadyClaimed):
		respondErrorCode(c, http.StatusConflict, "ya_asignada", err.Error())
	case errors.Is(err, utils.ErrorAlreadyResolved):
		respondErrorCode(c, http.StatusConflict, "ya_resuelta", err.Error())
	case errors.Is(err, utils.ErrorLockContention):
		respondErrorCode(c, http.StatusConflict, "operacion_en_curso", err.Error())
	case errors.Is(err, utils.ErrorIncompleteTreatment):
		respondErrorCode(c, http.StatusUnprocessableEntity, "tratamiento_incompleto", err.Error())
	default:
		logger := config.GetLogger()
		config.LogError(logger, "response.go", "RespondError", c.FullPath(), nil, err)
		respondErrorCode(c, http.StatusInternalServerError, "error_interno", "error interno del servidor")
	}
}

// bindJSON binds the body and reports the first validation failure in the
// standard envelope. Returns false when the request was already answered.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		mapped := utils.ProcessValidationErrors(err)
		if !utils.IsValidationError(mapped) {
			mapped = utils.NewValidationError("body", "cuerpo de la petición inválido")
		}
		RespondError(c, mapped)
		return false
	}
	return true
}

// actorOrAbort resolves the caller set by the auth middleware. Routes are
// mounted behind RequireAuth, so a miss here is a wiring bug.
func actorOrAbort(c *gin.Context) (models.Actor, bool) {
	actor, ok := middlewares.GetActor(c)
	if !ok {
		respondErrorCode(c, http.StatusUnauthorized, "no_autenticado", "autenticación requerida")
		return models.Actor{}, false
	}
	return actor, true
}

// idParam parses the numeric :id (or named) path segment.
func idParam(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		RespondError(c, utils.NewValidationError(name, "debe ser un id numérico"))
		return 0, false
	}
	return id, true
}
