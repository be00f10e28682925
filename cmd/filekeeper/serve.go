package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/ajaxzhan/filekeeper/internal/fs"
	"github.com/ajaxzhan/filekeeper/internal/index"
	"github.com/ajaxzhan/filekeeper/internal/logging"
	"github.com/ajaxzhan/filekeeper/internal/metrics"
	"github.com/ajaxzhan/filekeeper/internal/server"
	"github.com/ajaxzhan/filekeeper/internal/service"
)

var (
	grpcAddrFlag    string
	metricsAddrFlag string
	mountUserFlag   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the file operations over gRPC",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var mountCmd = &cobra.Command{
	Use:   "mount [mountpoint]",
	Short: "Mount a read-only FUSE view of the managed tree",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMount,
}

func init() {
	serveCmd.Flags().StringVar(&grpcAddrFlag, "grpc-addr", "", "gRPC server address (overrides config)")
	serveCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Prometheus endpoint address (overrides config)")
	mountCmd.Flags().StringVar(&mountUserFlag, "mount-user", "", "User every access through the mount is evaluated for (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if grpcAddrFlag != "" {
		cfg.Server.GRPCAddr = grpcAddrFlag
	}
	if metricsAddrFlag != "" {
		cfg.Server.MetricsAddr = metricsAddrFlag
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := service.Open(ctx, cfg, service.WithMetrics(metrics.New(reg)))
	if err != nil {
		return err
	}
	defer svc.Close()

	if cfg.Index.Watch {
		startWatcher(ctx, svc)
	}

	srv, err := server.New(&server.Config{
		GRPCAddr:    cfg.Server.GRPCAddr,
		MetricsAddr: cfg.Server.MetricsAddr,
	}, svc)
	if err != nil {
		return err
	}

	logging.Info("Starting filekeeper server",
		logging.String("grpc_addr", cfg.Server.GRPCAddr),
		logging.String("metrics_addr", cfg.Server.MetricsAddr),
		logging.String("root", cfg.Storage.Root),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.StartWithMetrics(reg)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("Shutting down server...")
	done := make(chan struct{})
	go func() {
		srv.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(cfg.Server.GetShutdownTimeout()):
		logging.Warn("Graceful shutdown timed out")
	}
	return nil
}

// startWatcher reloads the index whenever another process replaces the
// snapshot. Only the JSON backend lives in a single watchable file.
func startWatcher(ctx context.Context, svc *service.Service) {
	if cfg.Index.Backend != "json" {
		logging.Warn("Index watch is only supported for the json backend",
			logging.String("backend", cfg.Index.Backend),
		)
		return
	}

	w, err := index.NewWatcher(cfg.Index.SnapshotPath)
	if err != nil {
		logging.Warn("Failed to watch snapshot", logging.Err(err))
		return
	}

	go func() {
		err := w.Run(ctx, func() {
			if err := svc.Reload(ctx); err != nil {
				logging.Warn("Failed to reload index", logging.Err(err))
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn("Snapshot watcher stopped", logging.Err(err))
		}
	}()
}

func runMount(cmd *cobra.Command, args []string) error {
	mountPoint := cfg.Mount.Path
	if len(args) == 1 {
		mountPoint = args[0]
	}
	user := cfg.Mount.User
	if mountUserFlag != "" {
		user = mountUserFlag
	}
	if user == "" {
		user = actingUser()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := service.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	view, err := fs.NewIndexFS(&fs.IndexFSConfig{
		Root:       svc.Root(),
		MountPoint: mountPoint,
		User:       user,
	}, svc)
	if err != nil {
		return err
	}

	if err := view.Mount(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
