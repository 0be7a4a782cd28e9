package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/designpipe/dp/internal/api"
	"github.com/designpipe/dp/internal/output"
	"github.com/designpipe/dp/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store
	apiClient *api.Client

	verbose bool
	dryRun  bool
)

var rootCmd = &cobra.Command{
	Use:   "dp",
	Short: "Design pipeline client - track sessions, statuses, and traces",
	Long: `dp is a client for the interior design pipeline backend.
It creates and tracks design sessions, follows the pipeline through its
phases (upload, analyze, search, source, place), and renders aggregated
job traces while the backend works.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return rootRun(cmd)
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/dp/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "dp")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DP")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "dp")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "dp.db"))
	viper.SetDefault("api.base_url", "http://localhost:8000")
	viper.SetDefault("poll.interval_ms", 2000)
	viper.SetDefault("pipeline.mode", "fast")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	apiClient = api.New(viper.GetString("api.base_url"))

	// Store is initialized lazily so config/version commands run without a db.
}

// rootRun handles `dp` with no subcommand: show the current session's status,
// or help when none is set.
func rootRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return cmd.Help()
	}

	id, err := s.CurrentSession(context.Background())
	if err != nil || id == "" {
		return cmd.Help()
	}

	return statusRun(id)
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// resolveSessionID picks the session to operate on: the explicit argument if
// given, otherwise the stored current session.
func resolveSessionID(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}

	s, err := getStore()
	if err != nil {
		return "", err
	}
	id, err := s.CurrentSession(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("no session given and no current session set (run 'dp session use <id>')")
	}
	return id, nil
}

// pollInterval returns the configured poll interval.
func pollInterval() time.Duration {
	ms := viper.GetInt("poll.interval_ms")
	if ms <= 0 {
		ms = 2000
	}
	return time.Duration(ms) * time.Millisecond
}

// pipelineMode parses a --mode flag value, falling back to the configured
// default when empty.
func pipelineMode(flag string) (api.PipelineMode, error) {
	if flag == "" {
		flag = viper.GetString("pipeline.mode")
	}
	switch mode := api.PipelineMode(flag); mode {
	case api.ModeFast, api.ModePro:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid pipeline mode: %q (want fast or pro)", flag)
	}
}
