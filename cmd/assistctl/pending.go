package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"n8n-assist-backend/internal/inject"
	"n8n-assist-backend/internal/store"
)

var pendingHost string

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Inspect or drop a site's pending injection",
}

var pendingShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the pending injection for --host",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := pendingHostKey()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		p, err := st.Pending(cmd.Context(), host)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if p == nil {
			printOutcome(w, inject.OutcomeIdle, nil)
			return nil
		}
		fmt.Fprintln(w, labelStyle.Render("host")+" "+answerStyle.Render(host))
		fmt.Fprintln(w, labelStyle.Render("created")+" "+answerStyle.Render(p.CreatedAt.Format("2006-01-02 15:04:05")))
		fmt.Fprintln(w, labelStyle.Render("attempts")+" "+answerStyle.Render(fmt.Sprint(p.Attempts)))
		for i, route := range p.RouteCandidates {
			marker := "  "
			if i == p.RouteIndex {
				marker = "→ "
			}
			fmt.Fprintln(w, notesStyle.Render(marker+route))
		}
		fmt.Fprintln(w, workflowStyle.Render(indentJSON(p.Workflow)))
		return nil
	},
}

var pendingClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop the pending injection for --host",
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := pendingHostKey()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.ClearPending(cmd.Context(), host); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("✓ cleared "+host))
		return nil
	},
}

// pendingHostKey accepts a bare host or a full URL.
func pendingHostKey() (string, error) {
	if pendingHost == "" {
		return "", errors.New("--host is required")
	}
	if key := inject.HostKey(pendingHost); key != "global" {
		return key, nil
	}
	return pendingHost, nil
}

func init() {
	pendingCmd.PersistentFlags().StringVar(&pendingHost, "host", "", "Site host (e.g. localhost:5678) or URL")
	pendingCmd.AddCommand(pendingShowCmd, pendingClearCmd)
}
