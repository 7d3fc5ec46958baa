package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/capability/audioext"
	"github.com/sonar-music/sonar/internal/capability/tagext"
	"github.com/sonar-music/sonar/internal/config"
	"github.com/sonar-music/sonar/internal/engine"
	"github.com/sonar-music/sonar/internal/logging"
	"github.com/sonar-music/sonar/internal/opensubsonic"
	"github.com/sonar-music/sonar/internal/server"
)

var serveDev bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the library engine and its two wire surfaces",
	Long:  "Starts the native RPC API and the OpenSubsonic-compatible HTTP API over one shared library engine.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "enable verbose development logging")
	rootCmd.AddCommand(serveCmd)
}

// runServe wires config, logging, and the engine, then runs both wire
// surfaces concurrently until SIGINT/SIGTERM, grounded on
// server/server.go's signal-driven Start but generalized from one
// http.Server to two, each owning its own listen address.
func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(logging.Config{Level: logging.LevelInfo, Dev: serveDev})
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	e, err := engine.New(ctx, cfg, log, engine.Options{
		TagExtractor:   tagext.New(),
		AudioExtractor: audioext.New(cfg.FFProbePath),
	})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	rpcServer := server.New(e)
	subsonicServer := opensubsonic.New(e)

	log.Info("sonar starting",
		zap.String("rpc_addr", cfg.Address),
		zap.String("opensubsonic_addr", cfg.OpenSubsonicAddress),
		zap.String("data_dir", cfg.DataDir),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- rpcServer.ListenAndServe(ctx, cfg.Address) }()
	go func() { errCh <- subsonicServer.ListenAndServe(ctx, cfg.OpenSubsonicAddress) }()

	go e.Run(ctx)

	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			stop()
			return fmt.Errorf("server exited: %w", err)
		}
	}
	return nil
}
