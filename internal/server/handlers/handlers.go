package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/application/rampservice"
	"github.com/radlabs/rampd/internal/infrastructure/database"
	"github.com/radlabs/rampd/internal/server/middleware"
	"github.com/radlabs/rampd/internal/server/websocket"
	"github.com/radlabs/rampd/pkg/config"
)

type Handlers struct {
	RampSvc rampservice.IRampService
	DB      *database.DBManager
	Hub     *websocket.Hub
	Logger  zerolog.Logger
	Config  *config.Config
}

func New(rampSvc rampservice.IRampService, db *database.DBManager, hub *websocket.Hub, logger zerolog.Logger, cfg *config.Config) *Handlers {
	return &Handlers{
		RampSvc: rampSvc,
		DB:      db,
		Hub:     hub,
		Logger:  logger,
		Config:  cfg,
	}
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	mw := middleware.NewMiddleware(h.Config.Security, h.Logger)
	mw.SetupMiddleware(router)

	rampHandler := NewRampHandler(h.RampSvc, h.Logger)
	wsHandler := NewWebSocketHandler(h.Hub, h.Config.WS, h.Logger)
	healthHandler := NewHealthHandler(h.DB)

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// WebSocket endpoint for transfer status updates
	router.GET("/status", wsHandler.HandleConnection)

	v1 := router.Group("/v1")
	v1.Use(mw.APIKeyMiddleware())
	{
		ramp := v1.Group("/ramp")
		{
			ramp.POST("/quote", rampHandler.Quote)
			ramp.POST("/paypal/order", rampHandler.CreatePaymentOrder)
			ramp.POST("/fiat-to-usdc", rampHandler.FiatToUSDC)
		}

		tx := v1.Group("/tx")
		{
			tx.GET("/history", rampHandler.History)
			tx.GET("/:txid/receipt", rampHandler.ReceiptByID)
		}

		v1.GET("/receipts/:digest", rampHandler.ReceiptByDigest)
	}
}
