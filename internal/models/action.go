package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/spotremote/internal/shared"
)

// Action is a playback command accepted by the dispatcher.
type Action string

const (
	ActionPlay       Action = "Play"
	ActionPause      Action = "Pause"
	ActionPlayPause  Action = "PlayPause"
	ActionNext       Action = "Next"
	ActionPrevious   Action = "Previous"
	ActionVolumeUp   Action = "VolumeUp"
	ActionVolumeDown Action = "VolumeDown"
	ActionShuffle    Action = "Shuffle"
	ActionLoop       Action = "Loop"
	ActionNothing    Action = "Nothing"
)

// Actions lists every supported action in display order.
var Actions = []Action{
	ActionPlay, ActionPause, ActionPlayPause, ActionNext, ActionPrevious,
	ActionVolumeUp, ActionVolumeDown, ActionShuffle, ActionLoop, ActionNothing,
}

// ParseAction resolves a tag into an [Action].
//
// Matching ignores case, spaces, dashes and underscores, so "Volume Up" and "volume_up" both resolve to [ActionVolumeUp].
// Unrecognized tags return an error wrapping [shared.ErrUnknownAction].
func ParseAction(tag string) (Action, error) {
	key := normalizeTag(tag)
	for _, a := range Actions {
		if normalizeTag(string(a)) == key {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", shared.ErrUnknownAction, tag)
}

func normalizeTag(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// ReadsState reports whether the action must fetch the player state before writing.
func (a Action) ReadsState() bool {
	switch a {
	case ActionVolumeUp, ActionVolumeDown, ActionShuffle, ActionLoop:
		return true
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// PlaybackActionRequest binds one action to the credential that will execute it.
//
// An empty SessionID marks a credential supplied by the caller in an Authorization header; it is never persisted.
type PlaybackActionRequest struct {
	Action     Action
	SessionID  string
	Credential *Credential
}
