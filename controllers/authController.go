package controllers

import (
	"errors"
	"net/http"

	"bitbucket.org/mmdatafocus/spm_backend/middlewares"
	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/gin-gonic/gin"
)

type loginInput struct {
	IdSpm    string `json:"id_spm" binding:"required,min=1"`
	Password string `json:"password" binding:"required,min=1"`
}

// Login checks the credentials and hands out a JWT, both in the body and
// as the session cookie for browser clients.
func Login(c *gin.Context) {
	var input loginInput
	if !bindJSON(c, &input) {
		return
	}

	usuario, err := models.GetUsuario(c.Request.Context(), input.IdSpm)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			respondErrorCode(c, http.StatusUnauthorized, "credenciales_invalidas", "usuario o contraseña incorrectos")
			return
		}
		RespondError(c, err)
		return
	}
	if err := utils.ComparePassword(usuario.Contrasena, input.Password); err != nil {
		respondErrorCode(c, http.StatusUnauthorized, "credenciales_invalidas", "usuario o contraseña incorrectos")
		return
	}
	if usuario.EstadoRegistro != "activo" {
		respondErrorCode(c, http.StatusForbidden, "usuario_inactivo", "el usuario está inactivo")
		return
	}

	token, err := utils.JwtGenerate(usuario.IdSpm, usuario.Rol, usuario.Posicion)
	if err != nil {
		RespondError(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.SessionCookieName, token, utils.TokenLifespanHours()*3600, "/", "", false, true)
	RespondOk(c, http.StatusOK, gin.H{
		"token":   token,
		"usuario": usuario,
	})
}

// Me returns the authenticated usuario.
func Me(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	usuario, err := models.GetUsuario(c.Request.Context(), actor.IdSpm)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOk(c, http.StatusOK, usuario)
}

// Logout clears the session cookie. The JWT itself stays valid until
// expiry; clients must drop it.
func Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middlewares.SessionCookieName, "", -1, "/", "", false, true)
	RespondOk(c, http.StatusOK, gin.H{"logout": true})
}
