package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotremote/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgActionDone MsgKind = iota
	MsgTrackFetched
)

type actionResult struct {
	action models.Action
	err    error
}

type trackResult struct {
	track *models.Track
	err   error
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(action models.Action, err error) Msg {
	return Msg{kind: MsgActionDone, data: actionResult{action, err}}
}

// trackFetchedMsg is the constructor for [MsgTrackFetched]
func trackFetchedMsg(track *models.Track, err error) Msg {
	return Msg{kind: MsgTrackFetched, data: trackResult{track, err}}
}
