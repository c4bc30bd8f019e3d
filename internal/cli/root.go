// Package cli wires memory-hog's command line entrypoint.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/container-resource-predictor/memory-hog/internal/cgroup"
	"github.com/container-resource-predictor/memory-hog/internal/config"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/api"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/metrics"
	"github.com/container-resource-predictor/memory-hog/internal/memoryhog/poller"
	"github.com/container-resource-predictor/memory-hog/pkg/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const componentName = "memory-hog"

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// app holds what a run needs from the outside world, so tests can point it
// at a fake cgroup hierarchy.
type app struct {
	source   *cgroup.Source
	out      io.Writer
	registry prometheus.Registerer
	gatherer prometheus.Gatherer
	mode     func() string
}

func defaultApp() *app {
	return &app{
		source:   cgroup.NewSource(),
		out:      os.Stdout,
		registry: prometheus.DefaultRegisterer,
		gatherer: prometheus.DefaultGatherer,
		mode:     cgroup.HierarchyMode,
	}
}

// NewRootCommand builds the memory-hog command.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultApp())
}

func newRootCommand(a *app) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   componentName,
		Short: "Hold 90% of the cgroup v2 memory limit and follow it as it changes",
		Long: `memory-hog resolves the cgroup v2 memory.max file of its own process,
allocates and touches 90% of the limit, then re-reads the limit every second
and resizes the allocation whenever it changes.`,
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return a.run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().Int("status-port", 8082, "Port for /health, /ready, /metrics and /api/v1 (0 disables)")
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	_ = v.BindPFlag("status_port", cmd.Flags().Lookup("status-port")) // nolint:errcheck // flag exists
	_ = v.BindPFlag("log_level", cmd.Flags().Lookup("log-level"))     // nolint:errcheck // flag exists

	cmd.SetVersionTemplate(fmt.Sprintf("%s version %s\ncommit: %s\nbuilt: %s\n", componentName, Version, GitCommit, BuildDate))
	return cmd
}

// Execute runs the root command. Any returned error means startup failed.
func Execute() error {
	cmd := NewRootCommand()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

// run resolves the limit, allocates, and then polls until a resize fails.
func (a *app) run(ctx context.Context, cfg *config.Config) error {
	log, err := common.NewLogger(a.out, componentName, cfg.LogLevel)
	if err != nil {
		return err
	}
	log.Info().Str("version", Version).Msg("Starting cgroupv2 memory limit monitoring application")

	mode := a.mode()
	log.Debug().Str("mode", mode).Msg("Detected cgroup hierarchy")

	path, err := a.source.ResolvePath()
	if err != nil {
		if errors.Is(err, cgroup.ErrNoUnifiedEntry) {
			log.Error().Str("mode", mode).Msg("Could not find cgroupv2 entry, ensure cgroupv2 is enabled and in use")
		}
		log.Error().Err(err).Msg("Failed to determine cgroupv2 memory.max path")
		return err
	}
	log.Info().Str("path", path.String()).Msg("Monitoring cgroupv2 memory limit")

	p := poller.New(a.source, path,
		poller.WithLogger(log),
		poller.WithMetrics(metrics.New(a.registry)),
	)

	if cfg.StatusPort > 0 {
		server := common.NewServer(componentName, cfg.StatusPort, a.registry, a.gatherer, log)
		server.SetReadiness(func() bool {
			return p.Snapshot().State != poller.StateInitializing
		})
		api.NewHandler(p, a.source, path, mode).RegisterRoutes(server.Router())
		server.StartBackground()
	}

	if err := p.Initialize(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize allocation")
		return err
	}

	// ctx is never cancelled in production; Run only returns early on a
	// failed resize.
	if err := p.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	return p.Allocation().Release()
}
