package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/desertthunder/spotremote/internal/ui"
	"github.com/urfave/cli/v3"
)

// Remote launches the interactive terminal remote for the CLI session.
func (r *Runner) Remote(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	if path := r.config.Log.File; path != "" {
		fileLogger, err := shared.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		shared.SetLogLevel(fileLogger, r.logger.GetLevel())
		r.SetLogger(fileLogger)
	}

	tokens, dispatcher, err := r.services(ctx)
	if err != nil {
		return err
	}

	controller := &sessionController{tokens: tokens, dispatcher: dispatcher, sessionID: r.config.CLI.SessionID}
	model := ui.NewModel(ctx, controller)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
