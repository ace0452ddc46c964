// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/curioloop/nlexpr/internal/catalog"
	"github.com/curioloop/nlexpr/problem"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	config     problem.Config
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "adcheck",
	Short: "Inspect and verify expression derivatives",
	Long: `adcheck builds the catalogued optimisation problems, prints the sparse
Jacobian and Lagrangian Hessian layout a solver would receive, and checks
the reverse-mode derivatives against finite differences.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := problem.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			if err := cfg.Validate(); err != nil {
				return err
			}
		}
		level, _ := cfg.Level()

		opts := &slog.HandlerOptions{Level: level}
		var handler slog.Handler
		switch logFormat {
		case "json":
			handler = slog.NewJSONHandler(os.Stderr, opts)
		case "text":
			handler = slog.NewTextHandler(os.Stderr, opts)
		default:
			return fmt.Errorf("unknown log format %q", logFormat)
		}
		logger = slog.New(handler)
		slog.SetDefault(logger)
		config = cfg
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json, text)")
}

// build sets up the catalogued problem called name.
func build(name string) (*problem.Problem, catalog.Entry, error) {
	e, ok := catalog.Lookup(name)
	if !ok {
		return nil, e, fmt.Errorf("unknown problem %q, see adcheck list", name)
	}
	p := e.Build()
	p.Config = config
	p.Logger = logger
	if err := p.Setup(); err != nil {
		return nil, e, err
	}
	return p, e, nil
}
