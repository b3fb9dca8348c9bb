package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/umpyre/beancounter/internal/config"
	"github.com/umpyre/beancounter/internal/core"
	"github.com/umpyre/beancounter/internal/processor/stripe"
	"github.com/umpyre/beancounter/internal/rpc"
	"github.com/umpyre/beancounter/internal/store/postgres"
)

// serverCmd represents the server command (default action): the
// long-lived RPC server named in spec.md §6's process bootstrap.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the BeanCounter RPC server",
	Long: `Start the BeanCounter RPC server, which exposes the accounting
core's operations (balances, payments, top-ups, Connect payouts) over
gRPC and serves Prometheus metrics on a separate address.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.RunE = runServer
}

func runServer(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	db, err := postgres.NewDatabase(&cfg.Database.Writer)
	if err != nil {
		return fmt.Errorf("server: failed to construct store: %w", err)
	}
	if err := db.Open(context.Background()); err != nil {
		return fmt.Errorf("server: failed to open store: %w", err)
	}
	defer db.Close()

	readerDB, err := postgres.NewDatabase(&cfg.Database.Reader)
	if err != nil {
		return fmt.Errorf("server: failed to construct reader store: %w", err)
	}
	if err := readerDB.Open(context.Background()); err != nil {
		return fmt.Errorf("server: failed to open reader store: %w", err)
	}
	defer readerDB.Close()

	proc, err := stripe.New(cfg.Processor, logger)
	if err != nil {
		return fmt.Errorf("server: failed to construct processor client: %w", err)
	}
	defer proc.Close()

	registry := prometheus.NewRegistry()
	metrics := core.NewMetrics(registry)
	services := core.NewServices(db, readerDB, proc, metrics, logger)

	rpcServer, err := rpc.NewServer(&rpc.ServerConfig{
		Address:        cfg.Service.BindAddress,
		MaxRecvMsgSize: rpc.DefaultServerConfig().MaxRecvMsgSize,
		MaxSendMsgSize: rpc.DefaultServerConfig().MaxSendMsgSize,
	}, services)
	if err != nil {
		return fmt.Errorf("server: failed to construct rpc server: %w", err)
	}

	go serveMetrics(cfg.Metrics.BindAddress, registry, logger)

	logger.Info().Str("address", cfg.Service.BindAddress).Msg("starting beancounter rpc server")
	if err := rpcServer.Start(); err != nil {
		return fmt.Errorf("server: rpc server stopped: %w", err)
	}
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.Info().Str("address", addr).Msg("starting metrics server")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if debug || verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(level).With().Timestamp().Logger()
}
