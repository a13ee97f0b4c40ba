package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/airvol/airvol/pkg/config"
	"github.com/airvol/airvol/pkg/discovery"
	"github.com/airvol/airvol/pkg/events"
	"github.com/airvol/airvol/pkg/log"
	"github.com/airvol/airvol/pkg/metrics"
	"github.com/airvol/airvol/pkg/selector"
	"github.com/airvol/airvol/pkg/supervisor"
	"github.com/airvol/airvol/pkg/volume"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "airvol",
	Short: "airvol - network volume follower",
	Long: `airvol discovers volume-streaming devices on the local network over
UDP broadcast, keeps a resilient WebSocket connection to the selected
device and applies received volume levels to a local sink.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"airvol version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	runCmd.Flags().String("config", "", "path to YAML config file")
	runCmd.Flags().String("force-ip", "", "connect to this IP instead of discovering")
	runCmd.Flags().Int("force-port", 0, "force the WebSocket port")
	runCmd.Flags().String("force-name", "", "only accept devices announcing this name")
	runCmd.Flags().String("metrics-addr", "", "Prometheus listen address (e.g. :9090)")
	runCmd.Flags().String("sink-cmd", "", "command run per applied change, {pct} substituted")
	runCmd.Flags().String("log-level", "", "log level (debug/info/warn/error)")
	runCmd.Flags().Bool("log-json", false, "JSON log output")

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the airvol daemon",
	Long: `Run the discovery listener and connection supervisor until
interrupted. Forced overrides come from flags, AIRVOL_* environment
variables or the config file, in that order of precedence.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})

		return run(cfg)
	},
}

// loadConfig layers file, environment and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if err := cfg.FromEnv(); err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("force-ip"); v != "" {
		cfg.Forced.IP = v
	}
	if v, _ := cmd.Flags().GetInt("force-port"); v != 0 {
		cfg.Forced.Port = v
	}
	if v, _ := cmd.Flags().GetString("force-name"); v != "" {
		cfg.Forced.Name = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v, _ := cmd.Flags().GetString("sink-cmd"); v != "" {
		cfg.Volume.SinkCommand = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v, _ := cmd.Flags().GetBool("log-json"); v {
		cfg.Log.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	forced := cfg.ForcedTypes()
	logger := log.WithComponent("main")

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	var sink volume.Sink = volume.LogSink{}
	if cfg.Volume.SinkCommand != "" {
		sink = volume.NewExecSink(cfg.Volume.SinkCommand).
			WithTimeout(time.Duration(cfg.Volume.SinkTimeout))
	}
	gate := volume.NewGate(sink, cfg.Volume.Threshold)

	sel := selector.New(forced, broker)

	sup := supervisor.New(supervisor.Config{
		Forced:            forced,
		StaleTTL:          time.Duration(cfg.Discovery.StaleTTL),
		HeartbeatInterval: time.Duration(cfg.Connection.HeartbeatInterval),
		WatchdogTimeout:   time.Duration(cfg.Connection.WatchdogTimeout),
		ConnectTimeout:    time.Duration(cfg.Connection.ConnectTimeout),
		RetryMin:          time.Duration(cfg.Connection.RetryMin),
		RetryMax:          time.Duration(cfg.Connection.RetryMax),
	}, sel, gate, broker)
	sel.OnReplace(sup.OnTargetReplaced)

	listener := discovery.NewListener(discovery.Config{
		Service:  cfg.Service,
		Port:     cfg.Discovery.Port,
		Interval: time.Duration(cfg.Discovery.Interval),
		Jitter:   time.Duration(cfg.Discovery.Jitter),
		Forced:   forced,
	}, broker)

	if err := listener.Start(); err != nil {
		// Discovery never produces candidates, but a forced IP still
		// gives the supervisor a target.
		logger.Error().Err(err).Msg("discovery unavailable")
		if forced.IP == "" {
			logger.Warn().Msg("no forced IP configured, no target will ever appear")
		}
	} else {
		sel.Start(listener.Candidates())
		defer sel.Stop()
		defer listener.Stop()
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listener started")
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	sup.Start()
	defer sup.Stop()

	logger.Info().
		Str("service", cfg.Service).
		Str("forced_ip", forced.IP).
		Str("forced_name", forced.Name).
		Msg("airvol started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down")
	return nil
}
