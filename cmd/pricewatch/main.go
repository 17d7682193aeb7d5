package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pricewatch/pkg/config"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "pricewatch",
		Short: "Track e-commerce product prices and raise price alerts",
		Long: `pricewatch keeps a watch list of product pages, extracts their prices
(JSON-LD, price meta tags, currency amounts in the page text) and reports
price drops and target hits on every check.

Every command prints a single JSON line on standard output.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			configFile, _ := cmd.Flags().GetString("config")
			return config.Init(v, configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default $HOME/.pricewatch/config.yaml or ./config.yaml)")
	flags.String("store", "", "Path of the JSON watch store")
	flags.String("backend", "", "Store backend (json or sqlite)")
	flags.String("sqlite-path", "", "Path of the SQLite database for the sqlite backend")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (fmt or json)")
	flags.Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("tracing-sampler", "ratio", "Tracing sampler type (always, never, ratio)")
	flags.Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	bindFlag(v, config.KeyStorePath, rootCmd, "store")
	bindFlag(v, config.KeyStoreBackend, rootCmd, "backend")
	bindFlag(v, config.KeyStoreSQLitePath, rootCmd, "sqlite-path")
	bindFlag(v, config.KeyLogLevel, rootCmd, "log-level")
	bindFlag(v, config.KeyLogFormat, rootCmd, "log-format")
	bindFlag(v, config.KeyTracingEnabled, rootCmd, "tracing-enabled")
	bindFlag(v, config.KeyTracingSampler, rootCmd, "tracing-sampler")
	bindFlag(v, config.KeyTracingRatio, rootCmd, "tracing-ratio")

	rootCmd.AddCommand(
		withTracing(newAddCmd(v)),
		withTracing(newAddItemCmd(v)),
		withTracing(newListCmd(v)),
		withTracing(newCheckCmd(v)),
		withTracing(newRemoveCmd(v)),
		withTracing(newHistoryCmd(v)),
		newVersionCmd(),
	)

	return rootCmd
}

// bindFlag binds a persistent flag to key. A flag left at its default still
// yields to the environment and the config file.
func bindFlag(v *viper.Viper, key string, cmd *cobra.Command, flag string) {
	_ = v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag))
}

// run executes one command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	writeJSON(stdout, errorOutput{OK: false, Error: err.Error()})
	return exitCode(err)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
