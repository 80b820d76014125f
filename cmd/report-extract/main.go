// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the report-extract CLI. It reads a
// DOCX report, renders a PDF copy, extracts KPIs, dates, and
// organizations with a language model, and writes the result as JSON.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/report-extract/internal/logging"
	"github.com/pdiddy/report-extract/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// loadedSecrets holds API keys loaded from .secrets/ at startup.
	loadedSecrets map[string]string

	// logger is built from --log-level before any command runs.
	logger = zap.NewNop()
)

// rootCmd is the base command for the report-extract CLI.
var rootCmd = &cobra.Command{
	Use:   "report-extract",
	Short: "Extract KPIs, dates, and organizations from DOCX reports",
	Long: `report-extract reads a DOCX business report, renders a PDF copy of it,
asks a language model to identify KPIs, dates, and organizations, and writes
the result as a JSON document.

Backends: claude, openai, gemini, ollama, and rules (offline). Without an API
key the rules backend is used.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := viper.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		l, err := logging.New(os.Stderr, viper.GetString("log-level"))
		if err != nil {
			return err
		}
		logger = l

		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not load .env", zap.Error(err))
		}

		s, err := secrets.Load(viper.GetString("secrets-dir"), logger)
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./report-extract.yaml or ~/.config/report-extract/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", logging.LevelInfo, "log level: debug, info, warn, or error")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of API key files")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("report-extract")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "report-extract"))
		}
	}

	viper.SetEnvPrefix("REPORT_EXTRACT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
