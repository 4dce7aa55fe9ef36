// Package cmd implements the embuild command line.
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/thediveo/enumflag/v2"

	"github.com/tomster/embuild/internal/logging"
	"github.com/tomster/embuild/pkg/builder"
)

var version = "dev"

// globals are the flags every command shares.
type globals struct {
	configFiles []string
	logLevel    logging.Level
	logFormat   logging.Format
}

func (g *globals) addFlags(fs *pflag.FlagSet) {
	fs.StringSliceVarP(&g.configFiles, "config", "c", []string{"embuild.yaml"}, "configuration file(s), merged in order")
	fs.Var(enumflag.New(&g.logLevel, "level", logging.LevelNames, enumflag.EnumCaseInsensitive), "log-level", "log level: debug, info, warn, error")
	fs.Var(enumflag.New(&g.logFormat, "format", logging.FormatNames, enumflag.EnumCaseInsensitive), "log-format", "log format: text, json")
}

func (g *globals) logger(cmd *cobra.Command) *logging.Logger {
	return logging.NewLogger(logging.Config{
		Level:  g.logLevel,
		Format: g.logFormat,
		Output: cmd.ErrOrStderr(),
	})
}

func (g *globals) config() (*builder.Config, error) {
	return builder.LoadConfig(g.configFiles...)
}

// New returns the root command.
func New() *cobra.Command {
	g := &globals{logLevel: logging.LevelInfo}

	root := &cobra.Command{
		Use:          "embuild",
		Short:        "Build ember-style applications",
		Version:      version,
		SilenceUsage: true,
	}
	g.addFlags(root.PersistentFlags())

	root.AddCommand(
		newBuildCmd(g, viper.New()),
		newAssetSizesCmd(),
		newTreeCmd(g, viper.New()),
		newConfigCmd(g),
	)

	return root
}

// Execute runs the root command.
func Execute() error {
	return New().Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
}

// bindEnvironment makes --environment fall back to EMBER_ENV, and the test
// command switch to EMBER_CLI_TEST_COMMAND.
func bindEnvironment(v *viper.Viper, fs *pflag.FlagSet) {
	_ = v.BindPFlag("environment", fs.Lookup("environment"))
	_ = v.BindEnv("environment", "EMBER_ENV")
	_ = v.BindEnv("test_command", "EMBER_CLI_TEST_COMMAND")
}

// environment resolves the environment aliases dev and prod.
func environment(v *viper.Viper) string {
	switch env := v.GetString("environment"); env {
	case "dev":
		return "development"
	case "prod":
		return "production"
	default:
		return env
	}
}
