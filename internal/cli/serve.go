package cli

import (
	"time"

	"tailorpress/internal/config"
	"tailorpress/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for resume tailoring",
	Long: `Start an HTTP server that provides REST API endpoints for resume tailoring
and session-based refinement.

Available endpoints:
- POST /api/v1/transform: Run the pipeline and open a refinement session
- POST /api/v1/sessions/{id}/feedback: Apply feedback to a session
- POST /api/v1/sessions/{id}/finalize: Finalize a session
- GET  /api/v1/sessions/{id}: Session status
- GET  /health: Health check endpoint
- GET  /stats: Server statistics and rate limiting info`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")

	// Bind flags to viper config keys
	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("server.port", "port")
	bindFlag("server.host", "host")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	// Reload custom prompt files on change while the server runs
	promptWatcher := config.NewPromptWatcher(cfg, time.Second, logger)
	if err := promptWatcher.Start(); err != nil {
		logger.LogError(err, "Failed to start prompt watcher")
	} else {
		defer func() {
			if err := promptWatcher.Stop(); err != nil {
				logger.LogError(err, "Failed to stop prompt watcher")
			}
		}()
	}

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		SessionTTL:     cfg.Server.SessionTTL,
		RateLimit:      &cfg.Server.RateLimit,
	}
	return server.NewServer(cfg, serverCfg, logger).Start()
}
