package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/desertthunder/melodymatch/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal dashboard.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/melodymatch-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	d, _, err := r.driver()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, d)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
