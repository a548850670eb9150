// Package ui implements a terminal playback remote using bubbletea's Elm architecture.
//
// Each key press maps to one [models.Action] that is sent through a [Controller], the same
// dispatch path the HTTP /control endpoint uses. After an action completes the remote
// re-reads the playing track so the header reflects the change.
//
// The [Model] implements bubbletea's standard Init/Update/View pattern, receiving results via the Msg union type.
// Key presses are ignored while an action is in flight so one key is one upstream command.
//
// Bindings (space, n/p, +/-, s, l, r, q) are listed with charmbracelet/bubbles/help.
package ui
