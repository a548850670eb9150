// submodule cmd contains command definitions
package main

import (
	"strings"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/urfave/cli/v3"
)

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// serveCommand runs the HTTP API
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API (login, callback, control)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override server.host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override server.port",
			},
		},
		Action: r.Serve,
	}
}

// loginCommand runs the authorization flow for the CLI session
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "Authorize spotremote with Spotify using OAuth2",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
				Value: 2 * time.Minute,
			},
		},
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the CLI session credential",
		Action: r.Logout,
	}
}

func sessionsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "sessions",
		Usage:  "List stored sessions (memory and sqlite stores)",
		Flags:  outputFlags(),
		Action: r.Sessions,
	}
}

func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Validate the CLI session token against the Spotify profile endpoint",
		Flags:  outputFlags(),
		Action: r.Status,
	}
}

// controlCommand dispatches one playback action
func controlCommand(r *Runner) *cli.Command {
	names := make([]string, 0, len(models.Actions))
	for _, a := range models.Actions {
		names = append(names, a.String())
	}

	return &cli.Command{
		Name:      "control",
		Aliases:   []string{"ctl"},
		Usage:     "Send a playback action (" + strings.Join(names, ", ") + ")",
		ArgsUsage: "<action>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "action"},
		},
		Action: r.Control,
	}
}

func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "track",
		Aliases: []string{"now"},
		Usage:   "Show the currently playing track",
		Flags:   outputFlags(),
		Action:  r.Track,
	}
}

// remoteCommand returns the top-level TUI command for interactive playback control.
func remoteCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "remote",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive terminal remote",
		Action:  r.Remote,
	}
}

// setupCommand handles setup operations for the database and config file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the SQLite credential store and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "config",
				Usage: "Write the example configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Path to write (defaults to --config)",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}
