package http

import (
	"github.com/gin-gonic/gin"

	"dropcode/internal/interfaces/http/handlers"
	"dropcode/internal/interfaces/http/middleware"
	"dropcode/internal/shared/logger"
)

// Router holds the gin engine and the wired handlers.
type Router struct {
	engine         *gin.Engine
	botHandler     *handlers.BotHandler
	webhookHandler *handlers.WebhookHandler
	deviceHandler  *handlers.DeviceHandler
	adminHandler   *handlers.AdminHandler
	imageHandler   *handlers.ImageHandler
	logger         logger.Interface
}

func NewRouter(
	botHandler *handlers.BotHandler,
	webhookHandler *handlers.WebhookHandler,
	deviceHandler *handlers.DeviceHandler,
	adminHandler *handlers.AdminHandler,
	imageHandler *handlers.ImageHandler,
	log logger.Interface,
) *Router {
	return &Router{
		engine:         gin.New(),
		botHandler:     botHandler,
		webhookHandler: webhookHandler,
		deviceHandler:  deviceHandler,
		adminHandler:   adminHandler,
		imageHandler:   imageHandler,
		logger:         log,
	}
}

// SetupRoutes configures all HTTP routes.
func (r *Router) SetupRoutes() {
	r.engine.Use(middleware.Logger(r.logger))
	r.engine.Use(middleware.Recovery())

	r.engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	r.engine.POST("/webhooks/cryptopay", r.webhookHandler.HandlePaymentWebhook)

	r.engine.GET("/images/:name", r.imageHandler.GetImage)

	v1 := r.engine.Group("/api/v1")

	bot := v1.Group("/bot")
	{
		bot.POST("/customers/resolve", r.botHandler.ResolveCustomer)
		bot.POST("/customers/awaiting", r.botHandler.SetAwaitingInput)
		bot.GET("/customers/:telegram_id/subscription", r.botHandler.GetSubscription)
		bot.GET("/plans", r.botHandler.ListPlans)
		bot.POST("/subscriptions", r.botHandler.CreateSubscription)
		bot.POST("/captures", r.botHandler.RequestCapture)
	}

	admin := v1.Group("/admin")
	{
		admin.GET("/devices", r.deviceHandler.ListDevices)
		admin.POST("/devices", r.deviceHandler.CreateDevice)
		admin.PUT("/devices/:id", r.deviceHandler.UpdateDevice)
		admin.POST("/devices/:id/release", r.deviceHandler.ReleaseDevice)
		admin.DELETE("/devices/:id", r.deviceHandler.DeleteDevice)

		admin.GET("/customers", r.adminHandler.ListCustomers)
		admin.POST("/customers/:id/block", r.adminHandler.BlockCustomer)
		admin.POST("/customers/:id/unblock", r.adminHandler.UnblockCustomer)

		admin.POST("/plans", r.adminHandler.CreatePlan)
		admin.DELETE("/plans/:id", r.adminHandler.DeactivatePlan)

		admin.GET("/subscriptions", r.adminHandler.ListSubscriptions)
		admin.POST("/subscriptions/:id/activate", r.adminHandler.ActivateSubscription)
		admin.POST("/subscriptions/:id/cancel", r.adminHandler.CancelSubscription)

		admin.GET("/sessions", r.adminHandler.ListSessions)
		admin.POST("/sessions/:sid/cancel", r.adminHandler.CancelSession)
	}
}

// GetEngine returns the gin engine.
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
