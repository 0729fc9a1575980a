package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"n8n-assist-backend/internal/inject"
	"n8n-assist-backend/internal/store"
)

var (
	injectURL      string
	injectFile     string
	injectRemote   string
	injectHeadless bool
	injectTimeout  time.Duration
	injectResume   bool
)

var injectCmd = &cobra.Command{
	Use:   "inject",
	Short: "Place a workflow JSON file on an n8n canvas",
	Long: `Open the editor at --url and place the workflow from --file on its canvas.

When the page has no canvas the workflow is parked as a pending injection for the
site and assistctl walks the new-workflow routes until one shows a canvas.
With --resume no file is needed: the site's pending injection is continued.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if injectURL == "" {
			return errors.New("--url is required")
		}
		if injectFile == "" && !injectResume {
			return errors.New("--file or --resume is required")
		}
		ctx := cmd.Context()
		if injectTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, injectTimeout)
			defer cancel()
		}

		st, err := store.Open(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		tab, err := openBrowser(ctx, injectRemote, injectHeadless)
		if err != nil {
			return err
		}
		defer tab.Close()
		if err := tab.Goto(ctx, injectURL); err != nil {
			return err
		}

		var out inject.Outcome
		if injectResume {
			out, err = inject.NewWatcher(newInjector(tab, st)).Run(ctx, tab)
		} else {
			workflow, rerr := readWorkflow(injectFile)
			if rerr != nil {
				return rerr
			}
			out, err = placeWorkflow(ctx, tab, st, workflow)
		}
		printOutcome(cmd.OutOrStdout(), out, err)
		if out == inject.OutcomeFailed || errors.Is(err, context.DeadlineExceeded) {
			return errors.New("injection did not complete")
		}
		return nil
	},
}

func init() {
	injectCmd.Flags().StringVar(&injectURL, "url", "", "Editor URL to open")
	injectCmd.Flags().StringVar(&injectFile, "file", "", "Workflow JSON file (bare workflow or assistant result)")
	injectCmd.Flags().StringVar(&injectRemote, "remote", "", "DevTools URL of a running Chrome (overrides CHROME_REMOTE_URL)")
	injectCmd.Flags().BoolVar(&injectHeadless, "headless", false, "Run Chrome headless")
	injectCmd.Flags().DurationVar(&injectTimeout, "timeout", 2*time.Minute, "Give up after this long (0 waits forever)")
	injectCmd.Flags().BoolVar(&injectResume, "resume", false, "Continue the site's pending injection instead of starting a new one")
}
