package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/internal/resource"
	"github.com/Adithya-Monish-Kumar-K/Compliance-Knowledge-Base/pkg/logger"
)

var (
	resourcesDir string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "kbctl",
	Short: "Inspect a compliance knowledge base corpus",
	Long: `kbctl loads the resource records of a compliance knowledge base and
lets you validate them, run searches and list the vocabulary and roles,
all without starting the server.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetupWriter(cmd.ErrOrStderr(), logLevel, "text")
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&resourcesDir, "resources", "r", "resources", "path to the resource directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
}

func loadStore() (*resource.Store, error) {
	store, err := resource.LoadDir(resourcesDir)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", resourcesDir, err)
	}
	return store, nil
}
