package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/suitpax/orderchanges/api"
	"github.com/suitpax/orderchanges/config"
	"github.com/suitpax/orderchanges/internal/auth"
	"github.com/suitpax/orderchanges/internal/middleware"
	"github.com/suitpax/orderchanges/internal/service/changes"
)

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails.
func Run(ctx context.Context, cfg *config.Config, sessions auth.SessionStore, changeSvc changes.ChangeUseCase) error {
	httpSrv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: newRouter(cfg, sessions, changeSvc),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func newRouter(cfg *config.Config, sessions auth.SessionStore, changeSvc changes.ChangeUseCase) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RateLimit(cfg.HTTP.RatePerSecond, cfg.HTTP.RateBurst))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	changeHandler := api.NewChangeHandler(changeSvc)
	group := router.Group("/api/duffel/order-changes")
	group.Use(auth.RequireUser(sessions))
	changeHandler.Register(group)

	return router
}
