package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cronus/internal/app"
	"cronus/internal/config"
	logx "cronus/pkg/logx"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagConfig   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "cronus [flags] <crontab>",
	Short: "Run a crontab and remember when each task last ran",
	Long: `cronus serves one crontab file. Lines have six schedule fields
(months days weekdays hours minutes seconds) followed by a shell command.
After each launch the task's last call is written back as a trailing
comment, so runs missed while cronus was down are caught up on restart.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	Args:          exactArgs(1),
	RunE:          runDaemon,
}

func init() {
	addConfigFlags(rootCmd.PersistentFlags())
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageErr(err) })
}

func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&flagConfig, "config", "c", "", "settings file (.yaml/.yml or .json)")
	fs.StringVar(&flagLogLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageErr(err)
		}
		return nil
	}
}

// loadConfig reads --config and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, usageErr(err)
	}
	if lvl := strings.TrimSpace(flagLogLevel); lvl != "" {
		if !logx.ValidLevel(lvl) {
			return nil, usageErr(fmt.Errorf("--log-level: unknown %q", lvl))
		}
		cfg.Logging.Level = lvl
	}
	return cfg, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(args[0], cfg)
	if err != nil {
		return err
	}
	return a.Run(cmd.Context())
}
