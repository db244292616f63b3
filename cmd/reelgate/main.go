// Package main is the CLI entry point for reelgate.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/reelgate/internal/config"
	"github.com/eliteGoblin/focusd/reelgate/internal/daemon"
	"github.com/eliteGoblin/focusd/reelgate/internal/domain"
	"github.com/eliteGoblin/focusd/reelgate/internal/infra"
	"github.com/eliteGoblin/focusd/reelgate/internal/matcher"
	"github.com/eliteGoblin/focusd/reelgate/internal/policy"
	"github.com/eliteGoblin/focusd/reelgate/internal/schedule"
	"github.com/eliteGoblin/focusd/reelgate/internal/snapshot"
	"github.com/eliteGoblin/focusd/reelgate/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "reelgate",
	Short: "Blocks the Instagram Reels viewer outside a daily window",
	Long: `reelgate watches UI snapshots of the foreground app and covers the
Reels viewer with a block overlay. A daily 10-minute window can be scheduled,
and blocking can be suspended with the override password.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the gating monitor on an event stream",
	Long: `Reads JSON-lines UI events (FOREGROUND_CHANGED / CONTENT_CHANGED with an
optional tree snapshot) from --input or stdin and shows the overlay when the
Reels viewer is detected. Rule changes in the config file apply without restart.`,
	RunE: runMonitor,
}

var classifyCmd = &cobra.Command{
	Use:   "classify [tree.json]",
	Short: "Check whether a UI tree snapshot shows the Reels viewer",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runClassify,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor and blocking status",
	RunE:  runStatus,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List gating policies and their rules",
	RunE:  runRules,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	inputPath  string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (.toml, .yaml or .json)")
	runCmd.Flags().StringVar(&inputPath, "input", "-", "Event stream file, - for stdin")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
	addSettingsCommands(rootCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runMonitor(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer loader.Close()

	logger := createLogger(cfg)
	defer func() { _ = logger.Sync() }()

	appPolicy, err := cfg.Policy(policy.NewRegistry())
	if err != nil {
		return err
	}

	store, err := infra.OpenStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	input, closeInput, err := openInput(inputPath)
	if err != nil {
		return err
	}
	defer closeInput()

	pm := infra.NewProcessManager()
	gate := schedule.NewGate()
	overlay := infra.NewCommandOverlay(
		infra.OverlayConfig{
			Command:     cfg.Overlay.Command,
			Args:        cfg.Overlay.Args,
			ProcessName: cfg.Overlay.ProcessName,
		},
		pm,
		func() string {
			anchor, err := store.ScheduleAnchor()
			if err != nil {
				return gate.BlockMessage(domain.ScheduleAnchor{})
			}
			return gate.BlockMessage(anchor)
		},
		logger,
	)

	controller := usecase.NewGatingController(
		usecase.ControllerConfig{
			PackageName:      cfg.PackageName(appPolicy),
			DebounceInterval: cfg.DebounceInterval(appPolicy),
		},
		matcher.New(cfg.RuleSet(appPolicy), logger),
		store,
		overlay,
		usecase.SystemClock{},
		logger,
	)

	monitor := daemon.NewMonitor(
		daemon.MonitorConfig{HeartbeatInterval: cfg.HeartbeatInterval(), Version: Version},
		controller,
		snapshot.NewStreamSource(input, logger),
		overlay,
		store,
		pm.GetCurrentPID(),
		logger,
	)

	loader.OnChange(func(next *config.Config) {
		monitor.UpdateRules(next.RuleSet(appPolicy))
	})
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", zap.Error(err))
	}
	go func() {
		for err := range loader.Errors() {
			logger.Warn("config reload failed", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	err = monitor.Run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appPolicy, err := cfg.Policy(policy.NewRegistry())
	if err != nil {
		return err
	}

	input := "-"
	if len(args) == 1 {
		input = args[0]
	}
	r, closeInput, err := openInput(input)
	if err != nil {
		return err
	}
	defer closeInput()

	root, err := snapshot.DecodeTree(r)
	if err != nil {
		return err
	}

	logger, _ := zap.NewDevelopment()
	defer func() { _ = logger.Sync() }()

	result := matcher.New(cfg.RuleSet(appPolicy), logger).Scan(root)
	out := cmd.OutOrStdout()
	if result.Matched {
		fmt.Fprintf(out, "MATCH  %s\n", result.Identifier)
	} else {
		fmt.Fprintln(out, "NO MATCH")
	}
	fmt.Fprintf(out, "visited %d of %d nodes, %d ignored, %d read errors\n",
		result.Visited, root.Size(), result.Ignored, len(result.ReadErrors))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := infra.OpenStore(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	pm := infra.NewProcessManager()
	gate := schedule.NewGate()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "\n=== reelgate Status ===")

	status, err := store.MonitorStatus()
	if err != nil {
		return err
	}
	switch {
	case status == nil:
		fmt.Fprintln(out, "Monitor: NOT RUNNING (never started)")
	case pm.IsRunning(status.PID):
		fmt.Fprintf(out, "Monitor: RUNNING (pid %d, version %s, state %s)\n",
			status.PID, status.AppVersion, status.State)
	default:
		fmt.Fprintf(out, "Monitor: NOT RUNNING (last pid %d)\n", status.PID)
	}
	if status != nil && status.LastHeartbeat > 0 {
		fmt.Fprintf(out, "Last heartbeat: %s\n", humanize.Time(time.Unix(status.LastHeartbeat, 0)))
	}

	enabled, err := store.BlockingEnabled()
	if err != nil {
		return err
	}
	if enabled {
		fmt.Fprintln(out, "Blocking: ENABLED")
	} else {
		fmt.Fprintln(out, "Blocking: DISABLED (run 'reelgate enable' to turn it back on)")
	}

	anchor, err := store.ScheduleAnchor()
	if err != nil {
		return err
	}
	printSchedule(out, gate, anchor, time.Now())

	set, err := infra.NewPasswordManager(store).IsSet()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Override password: %s\n", map[bool]string{true: "set", false: "not set"}[set])
	fmt.Fprintf(out, "Data dir: %s\n", cfg.DataDir)
	fmt.Fprintln(out, "=======================")
	return nil
}

func printSchedule(out io.Writer, gate schedule.Gate, anchor domain.ScheduleAnchor, now time.Time) {
	if !anchor.Enabled {
		fmt.Fprintln(out, "Schedule: none (blocked all day)")
		return
	}
	fmt.Fprintf(out, "Schedule: %s for %d minutes daily\n", gate.NextAllowedTime(anchor), schedule.AllowedDuration)
	if gate.IsInAllowedWindow(now, anchor) {
		fmt.Fprintf(out, "Window: OPEN (%d minutes left)\n", gate.RemainingMinutes(now, anchor))
	} else {
		fmt.Fprintln(out, "Window: closed")
	}
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "\n=== Gating Policies ===")
	for _, p := range policy.NewRegistry().GetAll() {
		active := ""
		if p.ID() == cfg.Monitor.PolicyID {
			active = " (active)"
		}
		rules := cfg.RuleSet(p)
		fmt.Fprintf(out, "\n[%s] %s%s\n", p.ID(), p.Name(), active)
		fmt.Fprintf(out, "  Package: %s\n", cfg.PackageName(p))
		fmt.Fprintln(out, "  Viewer identifiers:")
		for _, id := range rules.ViewerIdentifiers {
			fmt.Fprintf(out, "    - %s\n", id)
		}
		fmt.Fprintln(out, "  Ignored descriptions:")
		for _, phrase := range rules.IgnorePhrases {
			fmt.Fprintf(out, "    - %s\n", phrase)
		}
		fmt.Fprintf(out, "  Debounce: %s\n", cfg.DebounceInterval(p))
		fmt.Fprintf(out, "  Max depth: %d\n", rules.MaxDepth)
	}
	fmt.Fprintln(out, "\n=======================")
	return nil
}

func createLogger(cfg *config.Config) *zap.Logger {
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	logPath := cfg.LogPath()
	errPath := cfg.Logging.ErrorPath
	if errPath == "" {
		errPath = filepath.Join(filepath.Dir(logPath), "reelgate.error.log")
	}
	_ = os.MkdirAll(filepath.Dir(logPath), 0700)

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.OutputPaths = []string{logPath}
	zapConfig.ErrorOutputPaths = []string{errPath}
	zapConfig.EncoderConfig.TimeKey = "time"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapConfig.Build()
	if err != nil {
		// Fallback to stderr if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("reelgate %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
