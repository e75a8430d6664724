package routes

import (
	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/spm_backend/controllers"
	"bitbucket.org/mmdatafocus/spm_backend/middlewares"
)

// Register mounts the whole HTTP surface on the engine. Login is the only
// application route that works without a session; everything else under /api
// runs behind RequireAuth. Role checks (planner, approver, budget manager)
// live in the workflow layer, not here.
func Register(r *gin.Engine) {
	r.POST("/api/auth/login", controllers.Login)

	api := r.Group("/api", middlewares.RequireAuth())

	api.GET("/auth/me", controllers.Me)
	api.POST("/auth/logout", controllers.Logout)

	/* requester surface */

	api.POST("/solicitudes", controllers.CrearSolicitud)
	api.POST("/solicitudes/draft", controllers.GuardarDraft)
	api.PUT("/solicitudes/:id", controllers.SubmitSolicitud)
	api.GET("/solicitudes", controllers.ListSolicitudes)
	api.GET("/solicitudes/:id", controllers.GetSolicitudDetail)
	api.DELETE("/solicitudes/:id", controllers.EliminarDraft)
	api.POST("/solicitudes/:id/decidir", controllers.DecidirSolicitud)
	api.PATCH("/solicitudes/:id/cancel", controllers.CancelarSolicitud)
	api.POST("/solicitudes/:id/decidir_cancelacion", controllers.DecidirCancelacion)

	/* planner surface */

	plan := api.Group("/planificador")
	plan.GET("/queue", controllers.GetQueue)
	plan.PATCH("/solicitudes/:id/tomar", controllers.TomarSolicitud)
	plan.PATCH("/solicitudes/:id/liberar", controllers.LiberarSolicitud)
	plan.GET("/solicitudes/:id/tratamiento", controllers.GetTratamiento)
	plan.PATCH("/solicitudes/:id/tratamiento/items", controllers.GuardarTratamiento)
	plan.POST("/solicitudes/:id/finalizar", controllers.FinalizarSolicitud)
	plan.POST("/solicitudes/:id/rechazar", controllers.RechazarSolicitud)
	plan.GET("/estadisticas", controllers.GetEstadisticas)

	/* budget surface */

	api.GET("/presupuestos/mis", controllers.GetMisPresupuestos)
	api.POST("/presupuestos/incorporaciones", controllers.CrearIncorporacion)
	api.POST("/presupuestos/incorporaciones/:id/resolver", controllers.ResolverIncorporacion)

	/* notifications */

	api.GET("/notificaciones", controllers.GetNotificaciones)
	api.POST("/notificaciones/marcar", controllers.MarcarNotificaciones)

	/* supply execution */

	abastecimiento := api.Group("/abastecimiento")
	abastecimiento.GET("/timeline/:id", controllers.GetTimeline)
	abastecimiento.POST("/timeline/:id/nota", controllers.AgregarNota)
	abastecimiento.POST("/traslados", controllers.CrearTraslado)
	abastecimiento.PATCH("/traslados/:id", controllers.ActualizarTraslado)
	abastecimiento.POST("/solpeds", controllers.CrearSolped)
	abastecimiento.PATCH("/solpeds/:id", controllers.ActualizarSolped)
	abastecimiento.POST("/po", controllers.CrearPurchaseOrder)
	abastecimiento.POST("/po/:id/enviar", controllers.EnviarPurchaseOrder)
	abastecimiento.PATCH("/po/:id", controllers.ActualizarPurchaseOrder)
	abastecimiento.POST("/admin/outbox/send_all", controllers.FlushOutboxEmails)

	/* catalogs */

	api.GET("/catalogos", controllers.GetCatalogos)
}
