package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"n8n-assist-backend/internal/assistant"
	"n8n-assist-backend/internal/inject"
)

var (
	labelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	answerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	notesStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("42"))

	workflowStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("135")).
			Padding(0, 1)
)

func printResult(w io.Writer, res assistant.Result) {
	switch res.Kind {
	case assistant.KindError:
		fmt.Fprintln(w, errorStyle.Render("✗ "+res.Message))
		if res.Detail != "" {
			fmt.Fprintln(w, notesStyle.Render(res.Detail))
		}
	case assistant.KindCreateWorkflow:
		fmt.Fprintln(w, labelStyle.Render("workflow")+" "+notesStyle.Render(res.Model))
		fmt.Fprintln(w, workflowStyle.Render(indentJSON(res.Workflow)))
		if res.Notes != "" {
			fmt.Fprintln(w, notesStyle.Render(res.Notes))
		}
	case assistant.KindTranscript:
		fmt.Fprintln(w, labelStyle.Render("transcript")+" "+answerStyle.Render(res.Text))
	default:
		fmt.Fprintln(w, labelStyle.Render(string(res.Kind))+" "+answerStyle.Render(res.Answer))
		if res.Notes != "" {
			fmt.Fprintln(w, notesStyle.Render(res.Notes))
		}
	}
}

func printOutcome(w io.Writer, out inject.Outcome, err error) {
	switch out {
	case inject.OutcomeInjected:
		fmt.Fprintln(w, okStyle.Render("✓ workflow placed on the canvas"))
	case inject.OutcomeScheduled:
		fmt.Fprintln(w, labelStyle.Render("… waiting for a canvas"))
	case inject.OutcomeIdle:
		fmt.Fprintln(w, notesStyle.Render("nothing pending"))
	default:
		msg := "✗ workflow could not be placed"
		if err != nil {
			msg += ": " + err.Error()
		}
		fmt.Fprintln(w, errorStyle.Render(msg))
	}
}
