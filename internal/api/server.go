// Package api exposes the factory, launch events and lens over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rocket-mimo/internal/factory"
	"rocket-mimo/internal/lens"
	"rocket-mimo/internal/observability"
	"rocket-mimo/internal/points"
	"rocket-mimo/internal/token"
	"rocket-mimo/internal/verification"
)

// CallerHeader carries the hex address of the caller.
const CallerHeader = "X-Caller"

// Options configures the API server.
type Options struct {
	Factory *factory.Factory
	Lens    *lens.Lens

	// Stream serves /ws. Optional.
	Stream http.Handler

	// Verifier backs /launch-events/:token/verify. Optional.
	Verifier *verification.ReplayVerifier

	// Dev routes mutate these in-memory ledgers. Only mounted when DevMode.
	DevMode bool
	Tokens  *token.MemoryRegistry
	NFT     *token.Collection
	Points  *points.Registry

	Clock  func() time.Time
	Logger *zap.Logger
}

// Server is the HTTP API.
type Server struct {
	opts   Options
	logger *zap.Logger
	engine *gin.Engine
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	s := &Server{
		opts:   opts,
		logger: opts.Logger.Named("api"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.observe())
	s.routes(engine)
	s.engine = engine
	return s
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	if s.opts.Stream != nil {
		r.GET("/ws", gin.WrapH(s.opts.Stream))
	}

	f := r.Group("/factory")
	f.POST("/initialize", s.initializeFactory)
	f.POST("/launch-events", s.createLaunchEvent)
	f.GET("/launch-events/:token", s.getLaunchEventAddress)

	le := r.Group("/launch-events")
	le.GET("", s.listLaunchEvents)
	le.GET("/:token", s.getLaunchEvent)
	le.GET("/:token/users/:user", s.getUser)
	le.GET("/:token/users/:user/history", s.getUserHistory)
	le.POST("/:token/deposit", s.deposit)
	le.POST("/:token/withdraw", s.withdraw)
	le.POST("/:token/master-chef-point", s.setMasterChefPoint)
	le.POST("/:token/finalize", s.finalize)
	le.POST("/:token/claim", s.claim)
	le.POST("/:token/issuer-claim", s.issuerClaim)
	if s.opts.Verifier != nil {
		le.GET("/:token/verify", s.verify)
	}

	if s.opts.DevMode {
		dev := r.Group("/dev")
		dev.POST("/erc20/:token/mint", s.devMint)
		dev.POST("/erc20/:token/approve", s.devApprove)
		dev.POST("/nft/mint", s.devMintNFT)
		dev.POST("/points", s.devAddPoints)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) health(c *gin.Context) {
	_, initialized := s.opts.Factory.Infrastructure()
	body := gin.H{
		"status":        "ok",
		"initialized":   initialized,
		"launch_events": s.opts.Factory.NumLaunchEvents(),
		"time":          s.opts.Clock().UTC().Format(time.RFC3339),
	}
	if hub, ok := s.opts.Stream.(interface{ Clients() int }); ok {
		body["stream_clients"] = hub.Clients()
	}
	c.JSON(http.StatusOK, body)
}
