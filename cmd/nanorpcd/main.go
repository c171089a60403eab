// Command nanorpcd wires configuration, logging, metrics, the RPC core,
// and the dispatcher into a running server. It registers no methods of
// its own; method registration is the business of whatever embeds
// pkg/dispatch, which this binary exists only to demonstrate.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nanorpc/nanorpc/internal/config"
	"github.com/nanorpc/nanorpc/internal/logger"
	"github.com/nanorpc/nanorpc/internal/metrics"
	"github.com/nanorpc/nanorpc/internal/rpccore"
	"github.com/nanorpc/nanorpc/pkg/dispatch"
)

var (
	version = "dev"
	commit  = "none"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "nanorpcd",
	Short: "nanorpcd runs the nanorpc server runtime",
	Long: `nanorpcd is the reference server for the nanorpc runtime: a reactor-
driven RPC core and a dispatch worker pool exposed over a framed TCP
protocol.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reactor, dispatcher, and metrics endpoint",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("nanorpcd %s (commit %s)\n", version, commit)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default: built-in defaults)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	var mtr *metrics.Metrics
	if cfg.Metrics.Enabled {
		mtr = metrics.New(reg)
	}

	core, err := rpccore.NewCore(&cfg.Server)
	if err != nil {
		return fmt.Errorf("init rpc core: %w", err)
	}
	core.SetMetrics(mtr)

	svc := dispatch.NewService(
		core,
		cfg.Server.InitialTableCapacity,
		cfg.Server.SpinRetries,
		cfg.Server.MinSleep,
		cfg.Server.MaxSleep,
		nil,
	)
	svc.SetMetrics(mtr)
	// Method registration is the embedding program's responsibility;
	// nanorpcd itself demonstrates wiring, not a particular API surface.

	svc.RunRemote(cfg.Server.Workers)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", logger.Err(err))
			}
		}()
		logger.Info("metrics endpoint listening", "addr", cfg.Metrics.Addr)
	}

	logger.Info("nanorpcd listening", "addr", cfg.Server.ListenAddr, "workers", cfg.Server.Workers)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- core.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		core.Interrupt()
		<-serverDone
	case err := <-serverDone:
		if err != nil {
			logger.Error("reactor exited with error", logger.Err(err))
		}
	}

	svc.Quit()
	if err := core.Close(); err != nil {
		logger.Warn("error closing rpc core", logger.Err(err))
	}
	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.IdleCloseTimeout)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down metrics server", logger.Err(err))
		}
	}

	logger.Info("nanorpcd stopped")
	return nil
}
