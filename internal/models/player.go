package models

// RepeatState is Spotify's repeat mode.
type RepeatState string

const (
	RepeatOff     RepeatState = "off"
	RepeatContext RepeatState = "context"
	RepeatTrack   RepeatState = "track"
)

// Next cycles off → context → track → off. Unknown values restart the cycle from off.
func (r RepeatState) Next() RepeatState {
	switch r {
	case RepeatOff:
		return RepeatContext
	case RepeatContext:
		return RepeatTrack
	case RepeatTrack:
		return RepeatOff
	default:
		return RepeatContext
	}
}

// DefaultVolume is assumed when the device reports no volume.
const DefaultVolume = 50

// Device is the active playback device.
type Device struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	IsActive      bool   `json:"is_active"`
	VolumePercent *int   `json:"volume_percent"`
}

// PlayerState is the subset of GET /me/player the dispatcher needs.
//
// It is re-read before every read-modify-write action because another client may have changed it.
type PlayerState struct {
	Device       *Device     `json:"device"`
	ShuffleState bool        `json:"shuffle_state"`
	RepeatState  RepeatState `json:"repeat_state"`
	IsPlaying    bool        `json:"is_playing"`
	ProgressMS   int         `json:"progress_ms"`
	Item         *Item       `json:"item"`
}

// Volume returns the device volume, or [DefaultVolume] when unknown.
func (p *PlayerState) Volume() int {
	if p == nil || p.Device == nil || p.Device.VolumePercent == nil {
		return DefaultVolume
	}
	return *p.Device.VolumePercent
}

// Repeat returns the repeat mode, defaulting to [RepeatOff].
func (p *PlayerState) Repeat() RepeatState {
	if p == nil || p.RepeatState == "" {
		return RepeatOff
	}
	return p.RepeatState
}

// Shuffle returns the shuffle flag, defaulting to false.
func (p *PlayerState) Shuffle() bool {
	return p != nil && p.ShuffleState
}

// ClampVolume steps v by delta and clamps the result to [0, 100].
func ClampVolume(v, delta int) int {
	n := v + delta
	switch {
	case n < 0:
		return 0
	case n > 100:
		return 100
	}
	return n
}

type artist struct {
	Name string `json:"name"`
}

type image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type album struct {
	Name   string  `json:"name"`
	Images []image `json:"images"`
}

// Item is the currently playing track as returned by the player endpoints.
type Item struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMS int      `json:"duration_ms"`
	Artists    []artist `json:"artists"`
	Album      album    `json:"album"`
}

// Track is the summary served by /current-track.
type Track struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	AlbumCover string `json:"albumCover"`
	IsPlaying  bool   `json:"isPlaying"`
}

// Summary flattens the item into a [Track]. The first artist and the largest cover image are used.
func (i *Item) Summary(playing bool) *Track {
	if i == nil {
		return nil
	}
	t := &Track{Name: i.Name, Album: i.Album.Name, IsPlaying: playing}
	if len(i.Artists) > 0 {
		t.Artist = i.Artists[0].Name
	}
	best := -1
	for _, img := range i.Album.Images {
		if img.Width > best {
			best = img.Width
			t.AlbumCover = img.URL
		}
	}
	return t
}
