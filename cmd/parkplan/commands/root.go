package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dyluth/parkplan/internal/config"
	"github.com/dyluth/parkplan/internal/logging"
	"github.com/dyluth/parkplan/internal/pipeline"
)

// defaultConfigPath is read when --config is not given and the file exists.
const defaultConfigPath = "parkplan.yml"

var (
	version string
	commit  string
	date    string

	configPath string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "parkplan",
	Short: "parkplan - industrial park decarbonization planner",
	Long: `parkplan screens decarbonization measures for an industrial park, matches
them against a policy corpus, stacks the subsidies they qualify for and
integrates the result into a payback and NPV view.

Every run moves through a fixed order of stages (geo, baseline, measures,
policy, finance). Data gaps and review checkpoints are collected along the way
and reported with the result.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	pipeline.ComponentVersion = v
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to parkplan.yml (default ./parkplan.yml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: info or debug (overrides the config file)")
}

// loadConfig reads --config, falls back to ./parkplan.yml, and otherwise returns
// the defaults with environment overrides applied.
func loadConfig() (*config.PlannerConfig, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat %s: %w", defaultConfigPath, err)
		}
	}

	if path != "" {
		return config.Load(path)
	}

	cfg := &config.PlannerConfig{Version: "1.0"}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger. --log-level wins over the config file.
func newLogger(cfg *config.PlannerConfig, component string) (*zap.Logger, error) {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	return logging.New(level, component)
}
