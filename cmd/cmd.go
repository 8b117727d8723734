// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// serveCommand runs the web front-end
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the landing, login and dashboard pages",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}

	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and maintenance commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml from the defaults",
				Flags:  []cli.Flag{configFlag},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Flags:  []cli.Flag{configFlag},
				Action: r.SetupDatabase,
			},
			{
				Name:  "prune",
				Usage: "Delete web visitors (and their stored sessions) not seen recently",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Prune visitors idle for longer than this",
						Value: 30 * 24 * time.Hour,
					},
				},
				Action: r.SetupPrune,
			},
		},
	}
}

// authCommand handles the CLI's own session
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the terminal session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with Spotify through the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the login URL instead of opening it",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "status",
				Usage: "Show whether the stored session is still accepted",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output JSON",
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session",
				Action: r.AuthLogout,
			},
		},
	}
}

// profileCommand prints or exports the signed-in user's profile
func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Show your Melody Match profile",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, markdown, json or csv",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to this file (a directory for markdown) instead of stdout",
			},
		},
		Action: r.Profile,
	}
}

// tuiCommand opens the terminal dashboard
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Interactive terminal dashboard",
		Action: r.TUI,
	}
}
