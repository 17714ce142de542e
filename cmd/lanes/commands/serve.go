package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/lanes/internal/annotation"
	"github.com/dyluth/lanes/internal/api"
	"github.com/dyluth/lanes/internal/board"
	"github.com/dyluth/lanes/internal/engine"
	"github.com/dyluth/lanes/internal/persist"
	"github.com/dyluth/lanes/internal/realtime"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	serveAddr        string
	serveCORSOrigins []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the board engine and HTTP API",
	Long: `Run the board engine with realtime sync and expose its commands over HTTP.

Endpoints:
  GET    /healthz               store connectivity
  GET    /metrics               prometheus metrics
  GET    /board                 current board view
  POST   /drag/start            {"item_id": "..."}
  POST   /drag/hover            {"target_id": "...", "pointer_y": 0, "target_top": 0, "target_height": 0}
  POST   /drag/end              {"over_id": "..."} (empty aborts)
  POST   /drag/cancel
  POST   /items/:id/annotation  {"persona_id": "..."}
  DELETE /items/:id
  POST   /deposits/retry

Examples:
  lanes serve
  lanes serve --addr :9090 --cors-origin https://desk.example.com`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides http.addr)")
	serveCmd.Flags().StringSliceVar(&serveCORSOrigins, "cors-origin", nil, "Allowed CORS origins (default http://localhost:3000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	bridge := persist.NewBridge(store, cfg.RetryPolicy(), logger)
	syncer := realtime.NewSyncer(store, store, cfg.Routes(), logger)

	eng, err := engine.New(engine.Options{
		Topology:  cfg.Topology(),
		Bank:      board.ContainerID(cfg.Board.Bank),
		Depositor: bridge,
		Transport: annotation.NewHTTPTransport(cfg.Annotation.Endpoint, cfg.Annotation.Timeout),
		Syncer:    syncer,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	gin.SetMode(gin.ReleaseMode)
	server := api.NewServer(eng, store, api.Options{Addr: addr, CORSOrigins: serveCORSOrigins, Logger: logger})

	engineErr := make(chan error, 1)
	go func() { engineErr <- eng.Run(ctx) }()
	server.Start()

	logger.Info().
		Str("instance", cfg.Instance).
		Str("backend", cfg.Backend).
		Strs("tables", syncer.Tables()).
		Msg("lanes_serving")

	<-ctx.Done()
	logger.Info().Msg("shutdown_requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http_shutdown_failed")
	}

	select {
	case err := <-engineErr:
		return err
	case <-shutdownCtx.Done():
		logger.Warn().Msg("engine_shutdown_timeout")
		return nil
	}
}
