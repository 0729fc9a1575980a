package main

import (
	"context"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"n8n-assist-backend/internal/assistant"
	"n8n-assist-backend/internal/browser"
	"n8n-assist-backend/internal/inject"
	"n8n-assist-backend/internal/store"
)

var (
	chatImage    string
	chatHost     string
	chatPageURL  string
	chatOpen     string
	chatRemote   string
	chatHeadless bool
	chatNoSave   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [text]",
	Short: "Send one chat turn to the assistant",
	Long: `Send one chat turn to the assistant using the stored history for the site.

With --open the editor page is opened in Chrome first: its URL, node titles and
recent errors ride along as context, and a generated workflow is placed on the
canvas of that tab.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text := strings.TrimSpace(strings.Join(args, " "))
		image, err := imageReference(chatImage)
		if err != nil {
			return err
		}
		if text == "" && image == "" {
			return cmd.Help()
		}

		a, err := newAssistant()
		if err != nil {
			return err
		}
		st, err := store.Open(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		in := assistant.Input{Text: text, Image: image, PageURL: chatPageURL}
		var tab *browser.Tab
		if chatOpen != "" {
			tab, err = openBrowser(ctx, chatRemote, chatHeadless)
			if err != nil {
				return err
			}
			defer tab.Close()
			if err := tab.Goto(ctx, chatOpen); err != nil {
				return err
			}
			in.PageURL = chatOpen
			if pc, err := tab.CollectContext(ctx); err == nil {
				in.PageURL = pc.URL
				in.Context = pc
			}
		}

		host := chatHost
		if host == "" {
			host = inject.HostKey(in.PageURL)
		}
		in.History = loadHistory(ctx, st, host)

		res := a.Converse(ctx, cfg.Settings, in)
		printResult(cmd.OutOrStdout(), res)
		if !chatNoSave {
			saveTurn(ctx, st, host, text, image != "", res)
		}
		if res.IsError() {
			return nil
		}
		if tab != nil && res.Kind == assistant.KindCreateWorkflow {
			out, err := placeWorkflow(ctx, tab, st, res.Workflow)
			printOutcome(cmd.OutOrStdout(), out, err)
			if out == inject.OutcomeFailed {
				printResult(cmd.OutOrStdout(), assistant.InjectionFailed(cfg.Settings.UILang, errString(err)))
			}
		}
		return nil
	},
}

func loadHistory(ctx context.Context, st store.Store, host string) []assistant.HistoryEntry {
	msgs, err := st.History(ctx, host)
	if err != nil {
		return nil
	}
	out := make([]assistant.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		if m.Thinking {
			continue
		}
		out = append(out, assistant.HistoryEntry{Role: m.Role, Text: m.Text})
	}
	return out
}

func saveTurn(ctx context.Context, st store.Store, host, text string, hasImage bool, res assistant.Result) {
	reply := res.Reply()
	if res.Kind == assistant.KindCreateWorkflow {
		reply = res.Notes
	}
	msgs := []store.Message{{Role: "user", Text: text, HasImage: hasImage}}
	if strings.TrimSpace(reply) != "" {
		msgs = append(msgs, store.Message{Role: "bot", Text: reply})
	}
	if err := st.AppendHistory(ctx, host, msgs...); err != nil {
		log.Printf("[chat] failed to store turn for %s: %v", host, err)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func init() {
	chatCmd.Flags().StringVar(&chatImage, "image", "", "Image file, data URL or http(s) URL to attach")
	chatCmd.Flags().StringVar(&chatHost, "host", "", "Site whose history to use (defaults to the page URL's host)")
	chatCmd.Flags().StringVar(&chatPageURL, "page-url", "", "Editor URL to mention as context")
	chatCmd.Flags().StringVar(&chatOpen, "open", "", "Open this editor URL in Chrome, send its context and inject the result")
	chatCmd.Flags().StringVar(&chatRemote, "remote", "", "DevTools URL of a running Chrome (overrides CHROME_REMOTE_URL)")
	chatCmd.Flags().BoolVar(&chatHeadless, "headless", false, "Run Chrome headless")
	chatCmd.Flags().BoolVar(&chatNoSave, "no-save", false, "Do not store this turn in the site history")
}
