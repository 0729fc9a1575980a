package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <audio-file>",
	Short: "Transcribe a voice note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		audio, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		a, err := newAssistant()
		if err != nil {
			return err
		}
		res := a.Transcribe(cmd.Context(), cfg.Settings, cfg.STTModel, filepath.Base(args[0]), audio)
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}
