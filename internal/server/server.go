package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	batchdomain "github.com/smallbiznis/renewly/internal/batch/domain"
	"github.com/smallbiznis/renewly/internal/config"
	historydomain "github.com/smallbiznis/renewly/internal/history/domain"
	messagedomain "github.com/smallbiznis/renewly/internal/message/domain"
	"github.com/smallbiznis/renewly/internal/observability"
	obsmiddleware "github.com/smallbiznis/renewly/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/renewly/internal/observability/metrics"
	obstracing "github.com/smallbiznis/renewly/internal/observability/tracing"
	"github.com/smallbiznis/renewly/internal/pipeline"
	"github.com/smallbiznis/renewly/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	ratelimit.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	log       *zap.Logger
	pipeline  *pipeline.Pipeline
	store     batchdomain.Store
	templates messagedomain.Service
	history   historydomain.Service

	uploadLimiter *ratelimit.UploadLimiter
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Log       *zap.Logger
	Pipeline  *pipeline.Pipeline
	Store     batchdomain.Store
	Templates messagedomain.Service
	History   historydomain.Service

	UploadLimiter *ratelimit.UploadLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		log:       p.Log.Named("http.server"),
		pipeline:  p.Pipeline,
		store:     p.Store,
		templates: p.Templates,
		history:   p.History,

		uploadLimiter: p.UploadLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1", TenantContext())

	// -------- Batches --------
	api.POST("/batches", s.UploadRateLimit(), s.CreateBatch)
	api.GET("/batches/latest", s.GetLatestBatch)
	api.GET("/batches/:id", s.GetBatch)
	api.GET("/batches/:id/messages", s.ListBatchMessages)
	api.GET("/batches/:id/tier-counts", s.GetBatchTierCounts)

	// -------- Uploads --------
	api.GET("/uploads", s.ListUploads)

	// -------- Templates --------
	api.GET("/templates", s.ListTemplates)
	api.PUT("/templates/:tier", s.SetTemplate)
	api.DELETE("/templates/:tier", s.ResetTemplate)
	api.GET("/templates/:tier/preview", s.PreviewTemplate)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
