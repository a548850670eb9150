package ui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// Controller sends playback actions and reads the playing track for one session.
type Controller interface {
	Send(ctx context.Context, action models.Action) error
	Track(ctx context.Context) (*models.Track, error)
}

// Model represents the remote's state.
type Model struct {
	ctx        context.Context
	controller Controller
	width      int
	height     int
	track      *models.Track
	last       models.Action
	pending    models.Action
	sent       int
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a new remote model around controller.
func NewModel(ctx context.Context, controller Controller) *Model {
	return &Model{
		ctx:        ctx,
		controller: controller,
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init fetches the playing track.
func (m *Model) Init() tea.Cmd {
	return m.fetchTrack()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgActionDone:
			res := msg.data.(actionResult)
			m.pending = ""
			m.last = res.action
			m.err = res.err
			if res.err != nil {
				return m, nil
			}
			m.sent++
			return m, m.fetchTrack()

		case MsgTrackFetched:
			res := msg.data.(trackResult)
			if res.err != nil {
				m.err = res.err
				return m, nil
			}
			m.track = res.track
		}
	}

	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchTrack()
	}

	if m.pending != "" {
		return m, nil
	}

	for _, b := range m.keys.actions() {
		if key.Matches(msg, b.binding) {
			m.pending = b.action
			return m, m.send(b.action)
		}
	}
	return m, nil
}

func (m *Model) send(action models.Action) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg(action, m.controller.Send(m.ctx, action))
	}
}

func (m *Model) fetchTrack() tea.Cmd {
	return func() tea.Msg {
		track, err := m.controller.Track(m.ctx)
		return trackFetchedMsg(track, err)
	}
}

// View renders the playing track, the last action's outcome and the key help.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("♫ spotremote"))
	b.WriteString("\n")
	b.WriteString(m.renderTrack())
	b.WriteString("\n\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))

	return styles.frame.Render(b.String())
}

func (m *Model) renderTrack() string {
	if m.track == nil {
		return styles.help.Render("Nothing playing")
	}

	state := "⏸"
	if m.track.IsPlaying {
		state = "▶"
	}
	line := fmt.Sprintf("%s %s", state, styles.track.Render(m.track.Name))
	if m.track.Artist != "" {
		line += " · " + m.track.Artist
	}
	if m.track.Album != "" {
		line += "\n  " + styles.help.Render(m.track.Album)
	}
	return line
}

func (m *Model) renderStatus() string {
	switch {
	case m.pending != "":
		return styles.warn.Render(fmt.Sprintf("→ %s...", m.pending))
	case m.err != nil:
		return styles.err.Render(fmt.Sprintf("✗ %s", describe(m.err)))
	case m.last != "":
		return styles.ok.Render(fmt.Sprintf("✓ %s", m.last))
	default:
		return styles.help.Render("Ready")
	}
}

// describe turns dispatch errors into a one-line hint for the status bar.
func describe(err error) string {
	switch {
	case shared.IsAuthError(err):
		return "not logged in, run `spotremote login`"
	case errors.Is(err, shared.ErrVolumeStateUnavailable):
		return "no active device to adjust"
	case shared.StatusOf(err) == http.StatusNotFound:
		return "no active device found"
	default:
		return err.Error()
	}
}
