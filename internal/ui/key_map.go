package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/desertthunder/spotremote/internal/models"
)

// keyMap defines the [key.Binding] mapping for the remote.
type keyMap struct {
	playPause  key.Binding
	play       key.Binding
	pause      key.Binding
	next       key.Binding
	previous   key.Binding
	volumeUp   key.Binding
	volumeDown key.Binding
	shuffle    key.Binding
	loop       key.Binding
	refresh    key.Binding
	help       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		playPause:  key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		play:       key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "play")),
		pause:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "pause")),
		next:       key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next")),
		previous:   key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous")),
		volumeUp:   key.NewBinding(key.WithKeys("+", "=", "up"), key.WithHelp("+/↑", "volume up")),
		volumeDown: key.NewBinding(key.WithKeys("-", "down"), key.WithHelp("-/↓", "volume down")),
		shuffle:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "shuffle")),
		loop:       key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "loop")),
		refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

// actions pairs each playback binding with the action it sends.
func (k keyMap) actions() []struct {
	binding key.Binding
	action  models.Action
} {
	return []struct {
		binding key.Binding
		action  models.Action
	}{
		{k.playPause, models.ActionPlayPause},
		{k.play, models.ActionPlay},
		{k.pause, models.ActionPause},
		{k.next, models.ActionNext},
		{k.previous, models.ActionPrevious},
		{k.volumeUp, models.ActionVolumeUp},
		{k.volumeDown, models.ActionVolumeDown},
		{k.shuffle, models.ActionShuffle},
		{k.loop, models.ActionLoop},
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.playPause, k.next, k.previous, k.volumeUp, k.volumeDown, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.playPause, k.play, k.pause},
		{k.next, k.previous},
		{k.volumeUp, k.volumeDown},
		{k.shuffle, k.loop},
		{k.refresh, k.help, k.quit},
	}
}
