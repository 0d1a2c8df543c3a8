package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hardik18-hk19/urbi-fix-sub000/api"
	"github.com/hardik18-hk19/urbi-fix-sub000/config"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/metrics"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/booking"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/chat"
	"github.com/hardik18-hk19/urbi-fix-sub000/internal/service/proposals"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Bookings  booking.BookingUseCase
	Proposals proposals.ProposalUseCase
	Chat      chat.ChatUseCase
	Hub       api.Broadcaster
	UploadDir string
}

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, deps Deps) error {
	router := NewRouter(deps)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

// NewRouter assembles the gin engine; split out so handler tests can mount
// the full route tree.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), metrics.Middleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.UploadDir != "" {
		router.Static("/uploads", deps.UploadDir)
	}

	authed := router.Group("/", api.Identity())

	bookings := authed.Group("/bookings")
	api.NewBookingHandler(deps.Bookings).Register(bookings)

	props := authed.Group("/proposals")
	api.NewProposalHandler(deps.Proposals).Register(props)

	chatGroup := authed.Group("/chat")
	api.NewChatHandler(deps.Chat).Register(chatGroup)
	api.NewEventsHandler(deps.Chat, deps.Hub).Register(chatGroup)

	return router
}
