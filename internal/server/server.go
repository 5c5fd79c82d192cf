package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"linecam/internal/camera"
	"linecam/internal/config"
	"linecam/internal/inspection"
)

// Server はカメラ操作用のHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	registry   *camera.Registry
	logger     zerolog.Logger
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, registry *camera.Registry, runner *inspection.Runner, logger zerolog.Logger) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		config:   cfg,
		registry: registry,
		logger:   logger,
		engine:   engine,
		httpServer: &http.Server{
			Addr:         cfg.ServerAddress(),
			Handler:      engine,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	s.setupRoutes(&CameraHandler{
		config:   cfg,
		registry: registry,
		runner:   runner,
		started:  time.Now(),
	})

	return s
}

// Handler はルーティング済みのhttp.Handlerを返す
func (s *Server) Handler() http.Handler {
	return s.engine
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes(h *CameraHandler) {
	s.engine.GET("/health", h.HealthCheck)

	api := s.engine.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/cameras", h.GetCameras)
	api.GET("/cameras/:name", h.GetCamera)
	api.POST("/cameras/:name/connect", h.ConnectCamera)
	api.POST("/cameras/:name/capture", h.CaptureCamera)
	api.POST("/cameras/:name/release", h.ReleaseCamera)
	api.POST("/inspections", h.RunInspection)
}

// requestLogger はリクエストをzerologに記録するミドルウェア
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Start はサーバーを起動し、ctxのキャンセルかシグナルまで待つ
func (s *Server) Start(ctx context.Context) error {
	shutdownCh := make(chan error, 1)

	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTPサーバーを起動しています")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		s.logger.Info().Str("signal", sig.String()).Msg("シグナルを受信しました")
	case err := <-shutdownCh:
		s.registry.ReleaseAll()
		return err
	}

	return s.Shutdown()
}

// Shutdown はサーバーを停止し、全てのカメラを解放する
func (s *Server) Shutdown() error {
	s.logger.Info().Msg("サーバーをシャットダウンしています")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)

	if failed := s.registry.ReleaseAll(); failed > 0 {
		s.logger.Warn().Int("failed", failed).Msg("解放に失敗したカメラがあります")
	}

	if err != nil {
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", err)
	}

	s.logger.Info().Msg("サーバーが正常にシャットダウンされました")
	return nil
}
