package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/mossy-p/call-signaling/config"
	"github.com/mossy-p/call-signaling/internal/handlers"
	"github.com/mossy-p/call-signaling/internal/relay"
	"go.uber.org/zap"
)

// Server serves the signaling websocket and the read-only HTTP API
type Server struct {
	cfg    *config.Config
	relay  *relay.Relay
	logger *zap.Logger
	srv    *http.Server
}

func New(cfg *config.Config, r *relay.Relay, logger *zap.Logger) *Server {
	return &Server{
		cfg:    cfg,
		relay:  r,
		logger: logger,
		srv: &http.Server{
			Handler:           NewRouter(cfg, r, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// NewRouter builds the gin engine with every route registered
func NewRouter(cfg *config.Config, r *relay.Relay, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))

	// Global CORS middleware (runs before routing)
	router.Use(handlers.OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", handlers.Health(r))

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/rooms/:roomId", handlers.GetRoom(r))
		apiGroup.GET("/ice-servers", handlers.GetICEServers(cfg.ICE.ICEServers()))
	}

	// Browsers open the socket on the bare origin; /ws is kept for proxies.
	signal := handlers.HandleSignaling(r, logger)
	router.GET("/", signal)
	router.GET("/ws", signal)

	return router
}

// Run listens on the configured port and serves until ctx is cancelled,
// then shuts down within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting signaling server", zap.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections.
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("http shutdown", zap.Error(err))
		return err
	}
	s.logger.Info("signaling server stopped")
	return nil
}
