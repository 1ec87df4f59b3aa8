package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oomkilld/oomkilld/internal/audit"
	"github.com/oomkilld/oomkilld/internal/config"
	"github.com/oomkilld/oomkilld/internal/killer"
	"github.com/oomkilld/oomkilld/internal/killprim"
	"github.com/oomkilld/oomkilld/internal/pressure"
	"github.com/oomkilld/oomkilld/internal/procfs"
	"github.com/oomkilld/oomkilld/internal/statusserver"
	"github.com/oomkilld/oomkilld/internal/sysinfo"
	"github.com/oomkilld/oomkilld/internal/telemetry"
)

func main() {
	root := &cobra.Command{
		Use:   "oomkilld",
		Short: "User-space OOM killer daemon",
		Long: `oomkilld watches /proc/meminfo for persistent memory pressure and,
once detected, picks the single most kill-desirable process and sends it
SIGKILL. It never acts on a transient spike — pressure must hold for the
configured dwell window first.`,
	}

	root.AddCommand(runCmd())

	if err := root.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := procfs.ReadMemoryStats(); err != nil {
		return fmt.Errorf("read /proc/meminfo: %w", err)
	}

	clock := sysinfo.Detect()
	log.Printf("oomkilld starting: clock_tick_rate=%.0fHz page_size=%d status_addr=%s",
		clock.TicksPerSecond, clock.PageSizeBytes, cfg.StatusAddr)

	auditSink, err := buildAuditSink(ctx, cfg.AuditDSN)
	if err != nil {
		return fmt.Errorf("build audit sink: %w", err)
	}

	telemetryProvider, err := buildTelemetryProvider(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("build telemetry provider: %w", err)
	}
	defer telemetryProvider.Shutdown(context.Background())

	handle := killer.New(cfg.Killer, killer.SysInfo{TicksPerSecond: clock.TicksPerSecond}, auditSink, telemetryProvider, killprim.New())
	handle.Start()
	defer handle.Stop()

	detector := pressure.New(cfg.Killer.Pressure)
	server := statusserver.New(cfg.StatusAddr, handle, detector)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("oomkilld running, status endpoint on http://%s/status", cfg.StatusAddr)
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("status server: %w", err)
	}

	log.Println("oomkilld shutting down")
	return nil
}

func buildAuditSink(ctx context.Context, dsn string) (audit.Sink, error) {
	if dsn == "" {
		return audit.NewMemorySink(256), nil
	}
	sink, err := audit.NewPostgresSink(ctx, dsn)
	if err != nil {
		log.Printf("audit: postgres sink unavailable, falling back to in-memory: %v", err)
		return audit.NewMemorySink(256), nil
	}
	return sink, nil
}

func buildTelemetryProvider(ctx context.Context, endpoint string) (*telemetry.Provider, error) {
	if endpoint == "" {
		return telemetry.NewNoop(), nil
	}
	provider, err := telemetry.NewOTLP(ctx, endpoint)
	if err != nil {
		log.Printf("telemetry: otlp exporter unavailable, falling back to noop: %v", err)
		return telemetry.NewNoop(), nil
	}
	return provider, nil
}
