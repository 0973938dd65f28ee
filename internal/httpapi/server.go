// Package httpapi exposes the relay's HTTP surface: the Bot Framework
// webhook plus the operator endpoints for sending and inspecting targets.
package httpapi

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mkrause/beacon/internal/connector"
	"github.com/mkrause/beacon/internal/notify"
	"github.com/mkrause/beacon/internal/store"
	"github.com/mkrause/beacon/internal/tracker"
)

// Opts holds configuration for the relay HTTP server.
type Opts struct {
	Store      *store.Store
	Tracker    *tracker.Tracker
	Dispatcher *notify.Dispatcher
	Validator  connector.TokenValidator
	BotID      string
	Port       int
	Log        zerolog.Logger
}

// Start launches the HTTP server. It blocks until ctx is cancelled, then
// shuts down gracefully.
func Start(ctx context.Context, opts Opts) error {
	if opts.Store == nil {
		return fmt.Errorf("httpapi: store is required")
	}
	if opts.Tracker == nil {
		return fmt.Errorf("httpapi: tracker is required")
	}
	if opts.Dispatcher == nil {
		return fmt.Errorf("httpapi: dispatcher is required")
	}
	if opts.Port <= 0 {
		opts.Port = 3978
	}

	router := newRouter(opts)

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	opts.Log.Info().Str("addr", addr).Msg("relay listening")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("httpapi: %w", err)
	}
	return nil
}

// newRouter builds the gin engine with all routes registered.
func newRouter(opts Opts) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	registerRoutes(router, opts)
	return router
}
