package middlewares

import (
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/spm_backend/models"
	"bitbucket.org/mmdatafocus/spm_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookieName carries the JWT for browser clients; API clients use
// the Authorization header.
const SessionCookieName = "spm_token"

const actorKey = "actor"

func bearerToken(c *gin.Context) string {
	auth := c.Request.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return strings.TrimSpace(auth[len(prefix):])
	}
	return ""
}

// AuthMiddleware resolves the caller from the Authorization header or the
// session cookie. Requests without credentials pass through anonymous;
// RequireAuth decides which routes insist on an identity.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(SessionCookieName); err == nil {
				token = cookie
			}
		}
		if token == "" {
			c.Next()
			return
		}

		validated, err := utils.JwtValidate(token)
		if err != nil || !validated.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": gin.H{"code": "no_autenticado", "message": "token inválido o expirado"},
			})
			c.Abort()
			return
		}
		claims, ok := validated.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": gin.H{"code": "no_autenticado", "message": "token inválido o expirado"},
			})
			c.Abort()
			return
		}

		actor := models.Actor{IdSpm: claims.IdSpm, Rol: claims.Rol, Posicion: claims.Posicion}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// GetActor returns the authenticated caller. ok is false on anonymous
// requests.
func GetActor(c *gin.Context) (models.Actor, bool) {
	v, exists := c.Get(actorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}

// RequireAuth aborts anonymous requests.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetActor(c); !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"ok":    false,
				"error": gin.H{"code": "no_autenticado", "message": "autenticación requerida"},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CorrelationMiddleware threads a correlation id through the request and
// into every outbox row it produces.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationId := strings.TrimSpace(c.GetHeader("X-Correlation-Id"))
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Correlation-Id", correlationId)
		c.Next()
	}
}
