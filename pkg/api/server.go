// Package api exposes the fulfillment engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"fulfillment/pkg/auth"
	"fulfillment/pkg/logger"
	"fulfillment/service"
	"fulfillment/storage"
)

type Options struct {
	AllowOrigins []string
	PollInterval time.Duration
}

type handler struct {
	svc          *service.Coordinator
	stg          storage.IStorage
	signer       *auth.Signer
	log          logger.ILogger
	pollInterval time.Duration
}

func NewRouter(svc *service.Coordinator, stg storage.IStorage, signer *auth.Signer, log logger.ILogger, opts Options) *gin.Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	h := &handler{svc: svc, stg: stg, signer: signer, log: log, pollInterval: opts.PollInterval}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(accessLog(log))
	r.Use(cors.New(corsConfig(opts.AllowOrigins)))

	r.GET("/healthz", h.health)

	authed := r.Group("/", h.authenticate())
	{
		orders := authed.Group("/orders")
		orders.POST("", h.createOrder)
		orders.GET("/:id", h.getOrder)
		orders.GET("/:id/history", h.history)
		orders.POST("/:id/transitions", h.transition)

		orders.POST("/:id/location/session", h.startSession)
		orders.DELETE("/:id/location/session", h.stopSession)
		orders.GET("/:id/location/session", h.session)
		orders.POST("/:id/location/samples", h.reportSample)
		orders.GET("/:id/location", h.latest)
		orders.GET("/:id/location/stream", h.stream)

		tables := authed.Group("/restaurants/:id/tables")
		tables.GET("", h.listTables)
		tables.POST("", h.createTable)
		tables.PUT("/:number/status", h.setTableStatus)
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", headerRequestID},
		ExposeHeaders: []string{"Content-Length", headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func (h *handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.stg.Ping(ctx); err != nil {
		h.log.Error("health check failed", logger.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func Run(ctx context.Context, port int, router http.Handler, log logger.ILogger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
