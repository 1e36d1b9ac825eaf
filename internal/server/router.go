// Package server assembles the HTTP routes of the API.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"webmarcas-backend/internal/config"
	"webmarcas-backend/internal/handlers"
	"webmarcas-backend/internal/middleware"
	"webmarcas-backend/internal/models"
	"webmarcas-backend/internal/validator"
)

// Handlers groups every HTTP handler mounted by NewRouter.
type Handlers struct {
	Health    *handlers.HealthHandler
	Registros *handlers.RegistrosHandler
	Proofs    *handlers.ProofHandler
	Verify    *handlers.VerifyHandler
	Credits   *handlers.CreditsHandler
	Alerts    *handlers.AlertsHandler
	Projects  *handlers.ProjectsHandler
	Webhook   *handlers.WebhookHandler
	Worker    *handlers.WorkerHandler
}

// NewRouter returns the gin engine serving the API under /api/v1.
func NewRouter(cfg *config.Config, log *zap.Logger, h Handlers) *gin.Engine {
	validator.Init()

	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.Metrics())

	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "NOT_FOUND", Message: "route not found"})
	})

	api := router.Group("/api/v1")

	// Public
	api.GET("/verify", h.Verify.Verify)
	api.POST("/verify", h.Verify.Verify)
	api.POST("/webhooks/payments", middleware.WebhookToken(cfg.PaymentWebhookToken), h.Webhook.HandlePayment)
	api.POST("/monitor-system", middleware.CronOrAdmin(cfg), h.Alerts.Monitor)

	authed := api.Group("")
	authed.Use(middleware.AuthMiddleware(cfg))

	authed.POST("/registros/check-duplicate", h.Registros.CheckDuplicate)
	authed.POST("/registros", h.Registros.Create)
	authed.GET("/registros", h.Registros.List)
	authed.GET("/registros/:registro_id", h.Registros.Get)
	authed.GET("/registros/:registro_id/proof", h.Proofs.Download)
	authed.GET("/registro-status", h.Registros.Status)

	authed.GET("/credits", h.Credits.Balance)
	authed.GET("/credits/ledger", h.Credits.Ledger)

	authed.POST("/projects", h.Projects.CreateProject)
	authed.GET("/projects", h.Projects.ListProjects)
	authed.GET("/projects/:project_id", h.Projects.GetProject)
	authed.POST("/projects/:project_id/archive", h.Projects.ArchiveProject)

	admin := authed.Group("")
	admin.Use(middleware.RequireAdmin())

	admin.POST("/alert", h.Alerts.Create)
	admin.GET("/alert", h.Alerts.List)

	admin.POST("/admin/credits/add", h.Credits.Mutate(models.OperationAdd))
	admin.POST("/admin/credits/adjust", h.Credits.Mutate(models.OperationAdjust))
	admin.POST("/admin/credits/refund", h.Credits.Mutate(models.OperationRefund))
	admin.POST("/admin/credits/expire", h.Credits.Mutate(models.OperationExpire))
	admin.POST("/admin/credits/:user_id/reconcile", h.Credits.Reconcile)

	admin.POST("/admin/registros/:registro_id/start", h.Worker.Start)
	admin.POST("/admin/registros/:registro_id/confirm", h.Worker.Confirm)
	admin.POST("/admin/registros/:registro_id/fail", h.Worker.Fail)

	return router
}
