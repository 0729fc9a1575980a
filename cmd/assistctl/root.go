package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"n8n-assist-backend/internal/config"
)

var (
	verbose bool
	uiLang  string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "assistctl",
	Short: "Talk to the n8n assistant and place workflows on an editor canvas",
	Long: `assistctl drives the n8n assistant from a terminal.

It sends chat turns to the configured model, transcribes voice notes and can
open an n8n editor in Chrome to paste a generated workflow onto the canvas,
following new-workflow routes until a canvas shows up.

Quick Start:
  assistctl chat "every morning fetch RSS and post to Slack"
  assistctl chat --open http://localhost:5678/home/workflows "same, but daily"
  assistctl inject --url http://localhost:5678/ --file workflow.json
  assistctl pending show --host localhost:5678`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !verbose {
			log.SetOutput(io.Discard)
		} else {
			log.SetOutput(cmd.ErrOrStderr())
		}
		cfg = config.Load()
		if cfg.DatabaseURL == "" && cfg.DataDir == "" {
			cfg.DataDir = defaultDataDir()
		}
		if uiLang != "" {
			cfg.Settings.UILang = uiLang
		}
	},
}

// defaultDataDir keeps pending injections across runs when neither DB_URL nor
// DATA_DIR is set; a memory store would forget them when the process exits.
func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		log.Printf("[store] no user config dir (%v), history and pending injections will not persist", err)
		return ""
	}
	return filepath.Join(dir, "n8n-assist")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&uiLang, "lang", "", "Language for messages (de or en)")
	rootCmd.AddCommand(chatCmd, transcribeCmd, injectCmd, pendingCmd)
}
