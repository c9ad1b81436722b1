package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/radlabs/rampd/internal/application/rampservice"
	"github.com/radlabs/rampd/internal/infrastructure/database"
	"github.com/radlabs/rampd/internal/server/handlers"
	"github.com/radlabs/rampd/internal/server/websocket"
	"github.com/radlabs/rampd/pkg/config"
)

type Server struct {
	RampSvc    rampservice.IRampService
	DB         *database.DBManager
	Cfg        *config.Config
	Logger     zerolog.Logger
	Router     *gin.Engine
	Hub        *websocket.Hub
	httpServer *http.Server
}

func New(cfg *config.Config, rampSvc rampservice.IRampService, db *database.DBManager, hub *websocket.Hub, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	return &Server{
		Cfg:     cfg,
		RampSvc: rampSvc,
		DB:      db,
		Hub:     hub,
		Logger:  logger,
		Router:  gin.New(),
	}
}

func (s *Server) SetupRouter() {
	handler := handlers.New(s.RampSvc, s.DB, s.Hub, s.Logger, s.Cfg)
	handler.SetupHandlers(s.Router)
}

func (s *Server) Start() {
	s.SetupRouter()

	s.httpServer = &http.Server{
		Addr:         s.Cfg.Server.Host + ":" + s.Cfg.Server.Port,
		Handler:      s.Router,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	s.Logger.Info().Msgf("Starting server on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-stopChan
	s.Logger.Info().Msg("Shutdown signal received, shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.Logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	s.Logger.Info().Msg("Server exited gracefully")
}
