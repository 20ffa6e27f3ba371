// Package cmd implements the actorgen command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spachava753/actorgen/internal/config"
	"github.com/spachava753/actorgen/internal/logging"
	"github.com/spachava753/actorgen/internal/models"
)

// EnvPrefix prefixes every environment variable the command line reads.
const EnvPrefix = "ACTORGEN"

// ErrIncomplete is returned when a batch finished with failed records or was
// cancelled.
var ErrIncomplete = errors.New("batch incomplete")

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

var rootCmd = &cobra.Command{
	Use:   "actorgen",
	Short: "Generate, publish and run scraper actors from a task list",
	Long: `actorgen turns each row of a task list into a scraper actor: it copies the
template project, customizes it with the task input, pushes it to git, creates
and builds the actor on the platform, runs it once and reports how many items
it scraped.

Configuration is read from a YAML file (--config). Credentials can also be
passed through the environment:

  ACTORGEN_PLATFORM_TOKEN   fallback platform token for rows without one
  ACTORGEN_GIT_TOKEN        token used by the gogit backend to push`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "creator.yaml", "Job config file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-file", "", "Write logs to this file, rotated, instead of stderr")
	flags.String("log-format", "text", "Log format (text, json)")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("log_level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log_file", flags.Lookup("log-file"))
	_ = viper.BindPFlag("log_format", flags.Lookup("log-format"))
}

// SetVersionInfo records build metadata shown by the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func initConfig() {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("config", "creator.yaml")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("platform_token", "")
	viper.SetDefault("git_token", "")
}

// loadJobConfig reads the job config and applies environment overrides, then
// override, before validating. A missing file is only an error when it was
// named explicitly.
func loadJobConfig(cmd *cobra.Command, mode models.Mode, override func(*models.JobConfig)) (models.JobConfig, error) {
	path := viper.GetString("config")

	cfg, err := config.LoadJobConfig(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return cfg, err
		}
		slog.Debug("no job config file, using defaults", "path", path)
		cfg = config.DefaultJobConfig()
	}

	cfg.Mode = mode
	if token := viper.GetString("platform_token"); token != "" {
		cfg.Platform.Token = token
	}
	if token := viper.GetString("git_token"); token != "" {
		cfg.Git.Token = token
	}
	if level := viper.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}
	if file := viper.GetString("log_file"); file != "" {
		cfg.LogFile = file
	}
	if override != nil {
		override(&cfg)
	}

	if err := config.Finalize(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid job config: %w", err)
	}
	return cfg, nil
}

// setupLogging installs the logger described by cfg.
func setupLogging(cfg models.JobConfig) (io.Closer, error) {
	return logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: viper.GetString("log_format"),
		File:   cfg.LogFile,
	})
}
