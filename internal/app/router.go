// internal/app/router.go
package app

import (
	"net/http"

	activityHandler "boda-service/internal/handlers/activity"
	authHandler "boda-service/internal/handlers/auth"
	ledgerHandler "boda-service/internal/handlers/ledger"
	payoutHandler "boda-service/internal/handlers/payout"
	withdrawalHandler "boda-service/internal/handlers/withdrawal"
	"boda-service/internal/middleware"
	"boda-service/internal/websocket"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler       *authHandler.AuthHandler
	LedgerHandler     *ledgerHandler.LedgerHandler
	WithdrawalHandler *withdrawalHandler.WithdrawalHandler
	PayoutHandler     *payoutHandler.PayoutHandler
	ActivityHandler   *activityHandler.ActivityHandler
	Hub               *websocket.Hub
	AuthMiddleware    *middleware.AuthMiddleware
}

func SetupRouter(engine *gin.Engine, h *Handlers) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	// ----- Auth -----
	v1.POST("/auth/login", h.AuthHandler.Login)

	// ----- Rider-facing -----
	riders := v1.Group("/riders")
	{
		riders.POST("/:riderId/earnings", h.LedgerHandler.CreditDelivery)
		riders.GET("/:riderId/balance", h.LedgerHandler.GetBalance)
		riders.POST("/:riderId/withdrawal-request", h.WithdrawalHandler.CreateRequest)
	}
	v1.GET("/withdrawal-fee-calculator", h.WithdrawalHandler.FeeCalculator)

	// ----- Admin console -----
	admin := v1.Group("/admin")
	admin.Use(h.AuthMiddleware.Auth())
	{
		admin.GET("/riders/:riderId/reconcile", h.LedgerHandler.Reconcile)

		admin.GET("/withdrawal-requests", h.WithdrawalHandler.ListRequests)
		admin.PATCH("/withdrawal-requests/:id", h.WithdrawalHandler.UpdateStatus)

		admin.GET("/automated-payments", h.PayoutHandler.ListPayments)
		admin.POST("/trigger-automated-payments", h.PayoutHandler.TriggerSweep)
		admin.GET("/payment-scheduler/status", h.PayoutHandler.Status)
		admin.POST("/payment-scheduler/start", h.PayoutHandler.Start)
		admin.POST("/payment-scheduler/stop", h.PayoutHandler.Stop)

		activities := admin.Group("/rider-activities")
		{
			activities.GET("", h.ActivityHandler.List)
			activities.GET("/stats", h.ActivityHandler.Stats)
			activities.GET("/rider/:riderId", h.ActivityHandler.ListByRider)
			activities.GET("/order/:orderId", h.ActivityHandler.ListByOrder)
			activities.GET("/earnings/:riderId", h.ActivityHandler.RiderEarnings)
			activities.POST("/log", h.ActivityHandler.Log)
			activities.GET("/export", h.ActivityHandler.Export)
			activities.POST("/import", h.ActivityHandler.Import)
			activities.DELETE("/:id", h.ActivityHandler.Delete)
		}
	}

	// ----- Live activity feed -----
	ws := engine.Group("/ws")
	ws.Use(h.AuthMiddleware.Auth())
	{
		ws.GET("/activities", h.Hub.HandleConnection)
	}
}
