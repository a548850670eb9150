package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/services"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/urfave/cli/v3"
)

// Control dispatches one playback action with the CLI session.
//
// The tag is validated before the session is touched, so an unknown action never reaches Spotify.
func (r *Runner) Control(ctx context.Context, cmd *cli.Command) error {
	tag := cmd.StringArg("action")
	if tag == "" {
		return fmt.Errorf("%w: action is required", shared.ErrMissingArgument)
	}

	action, err := models.ParseAction(tag)
	if err != nil {
		return err
	}
	if action == models.ActionNothing {
		return r.writePlain("✓ %s\n", action)
	}

	_, dispatcher, cred, err := r.sessionCredential(ctx)
	if err != nil {
		return err
	}

	err = dispatcher.Dispatch(ctx, models.PlaybackActionRequest{
		Action:     action,
		SessionID:  r.config.CLI.SessionID,
		Credential: cred,
	})
	if err != nil {
		return err
	}

	return r.writePlain("✓ %s\n", action)
}

// Track prints the currently playing track.
func (r *Runner) Track(ctx context.Context, cmd *cli.Command) error {
	_, dispatcher, cred, err := r.sessionCredential(ctx)
	if err != nil {
		return err
	}

	track, err := dispatcher.CurrentTrack(ctx, r.config.CLI.SessionID, cred)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(track, cmd.Bool("pretty"))
	}

	if track == nil {
		return r.writePlain("Nothing playing\n")
	}

	state := "Paused"
	if track.IsPlaying {
		state = "Playing"
	}
	r.writePlain("%s: %s - %s\n", state, track.Artist, track.Name)
	if track.Album != "" {
		r.writePlain("   Album: %s\n", track.Album)
	}
	if track.AlbumCover != "" {
		r.writePlain("   Cover: %s\n", track.AlbumCover)
	}
	return nil
}

// sessionController drives the terminal remote through the dispatcher for one stored session.
type sessionController struct {
	tokens     *services.TokenManager
	dispatcher *services.Dispatcher
	sessionID  string
}

func (c *sessionController) Send(ctx context.Context, action models.Action) error {
	cred, err := c.tokens.Credential(ctx, c.sessionID)
	if err != nil {
		return err
	}
	return c.dispatcher.Dispatch(ctx, models.PlaybackActionRequest{
		Action: action, SessionID: c.sessionID, Credential: cred,
	})
}

func (c *sessionController) Track(ctx context.Context) (*models.Track, error) {
	cred, err := c.tokens.Credential(ctx, c.sessionID)
	if err != nil {
		return nil, err
	}
	return c.dispatcher.CurrentTrack(ctx, c.sessionID, cred)
}
