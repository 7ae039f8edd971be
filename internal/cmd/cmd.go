// Package cmd implements the framesync command line.
package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clambin/go-common/charmer"
	"github.com/hoveln/framesync/internal/app"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	configFilename string
	RootCmd        = cobra.Command{
		Use:   "framesync",
		Short: "keeps display devices in sync with their media sources",
		RunE:  monitor,
	}
)

var args = charmer.Arguments{
	"debug":         charmer.Argument{Default: false, Help: "Log debug messages"},
	"pairs.path":    charmer.Argument{Default: "", Help: "Pair configuration file (default: pairs.yaml next to the config file)"},
	"exporter.addr": charmer.Argument{Default: ":9090", Help: "Address of Prometheus exporter"},
	"health.addr":   charmer.Argument{Default: ":8080", Help: "Address of /health endpoint and control API"},
	"slack.token":   charmer.Argument{Default: "", Help: "Slack token"},
}

func init() {
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVar(&configFilename, "config", "", "Configuration file")
	RootCmd.PersistentFlags().Bool("debug", false, "Log debug messages")
	_ = viper.BindPFlag("debug", RootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if configFilename != "" {
		viper.SetConfigFile(configFilename)
	} else {
		viper.AddConfigPath("/etc/framesync/")
		viper.AddConfigPath("$HOME/.framesync")
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
	}

	if err := charmer.SetDefaults(viper.GetViper(), args); err != nil {
		panic("failed to set viper defaults: " + err.Error())
	}

	viper.SetEnvPrefix("FRAMESYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		slog.Error("failed to read config file", "err", err)
		os.Exit(1)
	}
}

func monitor(cmd *cobra.Command, _ []string) error {
	logger := newLogger(viper.GetBool("debug"))
	logger.Info("starting", "version", cmd.Root().Version)

	m, err := app.New(viper.GetViper(), prometheus.DefaultRegisterer, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = m.Run(ctx)
	logger.Info("stopped")
	return err
}

func newLogger(debug bool) *slog.Logger {
	var opts slog.HandlerOptions
	if debug {
		opts.Level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &opts))
}
