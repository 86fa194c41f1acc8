// Package main is the entry point for the arxiv-search CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Sternrassler/arxiv-client/internal/config"
	"github.com/Sternrassler/arxiv-client/pkg/client"
	"github.com/Sternrassler/arxiv-client/pkg/logging"
)

// version is set at build time via ldflags.
var version = "dev"

// cfg is populated before any subcommand runs.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "arxiv-search",
	Short: "Query the arXiv API and download papers",
	Long: `arxiv-search runs paginated, rate-limited searches against the arXiv
Atom API. Every request of one process, or of all processes sharing a Redis
instance, keeps the configured delay between requests.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Setup(cfg.LoggingConfig())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Close()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./arxiv-search.yaml or ~/.config/arxiv-search/arxiv-search.yaml)")
	flags.String("base-url", "", "arXiv API query endpoint")
	flags.Int("page-size", 0, "results requested per page")
	flags.Duration("delay", 0, "minimum time between requests")
	flags.Int("num-retries", 0, "retries per page after the first attempt")
	flags.String("redis-addr", "", "share the rate limit through this Redis instance")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (auto, json, console)")

	bindFlag("base_url", "base-url")
	bindFlag("page_size", "page-size")
	bindFlag("delay", "delay")
	bindFlag("num_retries", "num-retries")
	bindFlag("redis.addr", "redis-addr")
	bindFlag("log.level", "log-level")
	bindFlag("log.format", "log-format")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("arxiv-search")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "arxiv-search"))
		}
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newClient builds an API client from the loaded configuration.
func newClient() (*client.Client, error) {
	c, err := client.New(cfg.ClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	log.Debug().Str("client", c.String()).Msg("Client ready")
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
