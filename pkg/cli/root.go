// Package cli implements the duck-access command line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"duck-access/gateway"
	"duck-access/internal/config"
	"duck-access/manifest"
	"duck-access/rewrite"
	"duck-access/secret"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// app holds the wired components shared by subcommands. It is built once
// in the root command's PersistentPreRunE.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	creds  secret.Provider
	cache  *manifest.Cache
	engine *rewrite.Engine
}

// auth returns the credential pair, or an error explaining how to set one.
func (a *app) auth() (*secret.AuthContext, error) {
	auth, ok := a.creds.Lookup()
	if !ok {
		return nil, fmt.Errorf("no credentials configured: set %s and %s", secret.EnvAPIURL, secret.EnvAPIKey)
	}
	return auth, nil
}

func newRootCmd() *cobra.Command {
	var (
		envFile  string
		logLevel string
	)
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "duck-access",
		Short:         "Access-controlled remote tables for DuckDB",
		Long:          "Resolves access-controlled remote tables through the manifest service and queries them in an embedded DuckDB session.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
			for _, w := range cfg.Warnings {
				a.logger.Warn(w)
			}

			a.creds = secret.EnvProvider{}
			client := gateway.NewClient(
				gateway.WithTimeout(cfg.RequestTimeout),
				gateway.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
				gateway.WithLogger(a.logger),
			)
			a.cache = manifest.NewCache(client,
				manifest.WithSafetyMargin(cfg.SafetyMargin),
				manifest.WithLogger(a.logger),
			)
			a.engine = rewrite.NewEngine(a.cache,
				rewrite.WithFailMode(cfg.FailMode()),
				rewrite.WithLogger(a.logger),
			)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file loaded before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newResolveCmd(a),
		newQueryCmd(a),
		newInvalidateCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}
