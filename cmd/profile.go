package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/melodymatch/internal/flow"
	"github.com/desertthunder/melodymatch/internal/formatter"
	"github.com/desertthunder/melodymatch/internal/session"
	"github.com/desertthunder/melodymatch/internal/shared"
	"github.com/urfave/cli/v3"
)

// Profile loads the dashboard for the terminal session and prints or exports the profile.
func (r *Runner) Profile(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	output := cmd.String("output")

	d, m, err := r.driver()
	if err != nil {
		return err
	}

	acq := m.AcquireFromStore()
	a := d.Load(ctx, flow.PageDashboard, nil)
	switch {
	case a.Kind == flow.ShowError:
		return fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, a.Message)
	case a.Kind == flow.Render && a.Profile != nil:
	case acq.Status == session.StatusExpired:
		return fmt.Errorf("%w: run `melodymatch auth login` to sign in again", shared.ErrTokenExpired)
	case acq.Status == session.StatusValid:
		return fmt.Errorf("%w: run `melodymatch auth login` to sign in again", shared.ErrTokenRejected)
	default:
		return fmt.Errorf("%w: run `melodymatch auth login` first", shared.ErrNotAuthenticated)
	}

	p := a.Profile
	r.logger.Debug("profile loaded", "user_id", p.User.ID, "format", format)

	switch {
	case output == "":
		data, err := formatter.Export(p, format)
		if err != nil {
			return err
		}
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	case format == formatter.Markdown:
		result, err := formatter.WriteMarkdownExport(p, output)
		if err != nil {
			return err
		}
		r.writePlain("✓ Exported profile to %s\n", result.Directory)
		for _, f := range result.Files {
			r.writePlain("  %s\n", f)
		}
		return nil
	default:
		path, err := formatter.WriteExport(p, format, output)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported profile to %s\n", path)
	}
}
