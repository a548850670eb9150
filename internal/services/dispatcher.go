package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// Player is the subset of the Web API the dispatcher drives. [SpotifyClient] implements it.
type Player interface {
	Play(ctx context.Context, token string) error
	Pause(ctx context.Context, token string) error
	Next(ctx context.Context, token string) error
	Previous(ctx context.Context, token string) error
	SetVolume(ctx context.Context, token string, percent int) error
	SetShuffle(ctx context.Context, token string, state bool) error
	SetRepeat(ctx context.Context, token string, state models.RepeatState) error
	PlayerState(ctx context.Context, token string) (*models.PlayerState, error)
	CurrentlyPlaying(ctx context.Context, token string) (*models.Track, error)
	Profile(ctx context.Context, token string) (*SpotifyUser, error)
}

// DefaultVolumeStep is the VolumeUp/VolumeDown increment when none is configured.
const DefaultVolumeStep = 10

// DispatcherOpts configures a [Dispatcher].
type DispatcherOpts struct {
	Player          Player
	Tokens          *TokenManager
	Logger          *log.Logger
	VolumeStep      int
	SerializeWrites bool
}

// Dispatcher translates actions into Web API calls.
//
// Each dispatch refreshes and retries at most once when upstream answers 401.
// With SerializeWrites set, read-modify-write actions for the same session run one at a time.
type Dispatcher struct {
	player     Player
	tokens     *TokenManager
	logger     *log.Logger
	volumeStep int
	serialize  bool
	locks      sessionLocks
}

// NewDispatcher creates a [Dispatcher].
func NewDispatcher(opts DispatcherOpts) *Dispatcher {
	step := opts.VolumeStep
	if step <= 0 {
		step = DefaultVolumeStep
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{
		player:     opts.Player,
		tokens:     opts.Tokens,
		logger:     logger,
		volumeStep: step,
		serialize:  opts.SerializeWrites,
	}
}

// Dispatch executes one action with the request's credential.
//
// [models.ActionNothing] returns immediately without contacting upstream or touching the credential.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.PlaybackActionRequest) error {
	if req.Action == models.ActionNothing {
		return nil
	}

	start := time.Now()
	err := d.dispatch(ctx, req)
	observeDispatch(req.Action.String(), err, start)

	if err != nil {
		d.logger.Warn("dispatch failed", "action", req.Action, "session", req.SessionID, "error", err)
	} else {
		d.logger.Debug("dispatched", "action", req.Action, "session", req.SessionID, "duration", time.Since(start))
	}
	return err
}

func (d *Dispatcher) dispatch(ctx context.Context, req models.PlaybackActionRequest) error {
	if req.Action.ReadsState() && d.serialize && req.SessionID != "" {
		release := d.locks.acquire(req.SessionID)
		defer release()
	}

	c := &call{d: d, sessionID: req.SessionID, cred: req.Credential}

	switch req.Action {
	case models.ActionPlay:
		return c.run(ctx, d.player.Play)
	case models.ActionPause:
		return c.run(ctx, d.player.Pause)
	case models.ActionPlayPause:
		return d.playPause(ctx, c)
	case models.ActionNext:
		return c.run(ctx, d.player.Next)
	case models.ActionPrevious:
		return c.run(ctx, d.player.Previous)
	case models.ActionVolumeUp:
		return d.stepVolume(ctx, c, d.volumeStep)
	case models.ActionVolumeDown:
		return d.stepVolume(ctx, c, -d.volumeStep)
	case models.ActionShuffle:
		return d.toggleShuffle(ctx, c)
	case models.ActionLoop:
		return d.cycleRepeat(ctx, c)
	default:
		return fmt.Errorf("%w: %q", shared.ErrUnknownAction, req.Action)
	}
}

// sessionLocks hands out one mutex per session id. An entry lives only while
// some dispatch holds or waits on it.
type sessionLocks struct {
	mu   sync.Mutex
	held map[string]*sessionLock
}

type sessionLock struct {
	sync.Mutex
	refs int
}

// acquire blocks until the session's mutex is held and returns its release func.
func (l *sessionLocks) acquire(sessionID string) func() {
	l.mu.Lock()
	if l.held == nil {
		l.held = make(map[string]*sessionLock)
	}
	entry, ok := l.held[sessionID]
	if !ok {
		entry = &sessionLock{}
		l.held[sessionID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
	return func() {
		entry.Unlock()

		l.mu.Lock()
		defer l.mu.Unlock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.held, sessionID)
		}
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// playPause tries play and falls back to pause when upstream rejects it.
// Without reading state first this is a best guess at a toggle.
func (d *Dispatcher) playPause(ctx context.Context, c *call) error {
	err := c.run(ctx, d.player.Play)
	if err == nil || shared.IsAuthError(err) {
		return err
	}
	d.logger.Debug("play rejected, pausing instead", "session", c.sessionID, "error", err)
	return c.run(ctx, d.player.Pause)
}

func (d *Dispatcher) stepVolume(ctx context.Context, c *call, delta int) error {
	state, err := d.readState(ctx, c)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("%w: no active device", shared.ErrVolumeStateUnavailable)
	}

	target := models.ClampVolume(state.Volume(), delta)
	return c.run(ctx, func(ctx context.Context, token string) error {
		return d.player.SetVolume(ctx, token, target)
	})
}

func (d *Dispatcher) toggleShuffle(ctx context.Context, c *call) error {
	state, err := d.readState(ctx, c)
	if err != nil {
		return err
	}

	next := !state.Shuffle()
	return c.run(ctx, func(ctx context.Context, token string) error {
		return d.player.SetShuffle(ctx, token, next)
	})
}

func (d *Dispatcher) cycleRepeat(ctx context.Context, c *call) error {
	state, err := d.readState(ctx, c)
	if err != nil {
		return err
	}

	next := state.Repeat().Next()
	return c.run(ctx, func(ctx context.Context, token string) error {
		return d.player.SetRepeat(ctx, token, next)
	})
}

func (d *Dispatcher) readState(ctx context.Context, c *call) (*models.PlayerState, error) {
	var state *models.PlayerState
	err := c.run(ctx, func(ctx context.Context, token string) (err error) {
		state, err = d.player.PlayerState(ctx, token)
		return err
	})
	return state, err
}

// CurrentTrack summarizes what is playing for the credential. It returns nil when nothing is.
func (d *Dispatcher) CurrentTrack(ctx context.Context, sessionID string, cred *models.Credential) (*models.Track, error) {
	c := &call{d: d, sessionID: sessionID, cred: cred}

	var track *models.Track
	err := c.run(ctx, func(ctx context.Context, token string) (err error) {
		track, err = d.player.CurrentlyPlaying(ctx, token)
		return err
	})
	return track, err
}

// Profile fetches the profile of the credential's owner.
func (d *Dispatcher) Profile(ctx context.Context, sessionID string, cred *models.Credential) (*SpotifyUser, error) {
	c := &call{d: d, sessionID: sessionID, cred: cred}

	var user *SpotifyUser
	err := c.run(ctx, func(ctx context.Context, token string) (err error) {
		user, err = d.player.Profile(ctx, token)
		return err
	})
	return user, err
}

// call carries one dispatch's credential across its upstream requests.
//
// The refresh-and-retry budget is shared by every request in the call, so a dispatch refreshes at most once.
type call struct {
	d         *Dispatcher
	sessionID string
	cred      *models.Credential
	refreshed bool
}

func (c *call) run(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	cred, err := c.d.tokens.EnsureValid(ctx, c.sessionID, c.cred)
	if err != nil {
		return err
	}
	if cred != c.cred {
		c.refreshed = true
		c.cred = cred
	}

	err = fn(ctx, cred.AccessToken)
	if shared.StatusOf(err) != http.StatusUnauthorized {
		return err
	}
	if c.refreshed || !cred.CanRefresh() {
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}

	c.refreshed = true
	fresh, rerr := c.d.tokens.Refresh(ctx, c.sessionID, cred)
	if rerr != nil {
		return rerr
	}
	c.cred = fresh

	c.d.logger.Debug("retrying after refresh", "session", c.sessionID)
	err = fn(ctx, fresh.AccessToken)
	if shared.StatusOf(err) == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}
	return err
}
