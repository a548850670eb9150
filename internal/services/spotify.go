// Spotify Web API player client
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email,omitempty"`
	Country     string         `json:"country,omitempty"`
	Product     string         `json:"product,omitempty"` // premium, free, etc.
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// DefaultUpstreamTimeout bounds each Web API and token request when no timeout is configured.
const DefaultUpstreamTimeout = 10 * time.Second

// SpotifyClientOpts configures a [SpotifyClient].
type SpotifyClientOpts struct {
	BaseURL           string
	HTTPClient        *http.Client
	Timeout           time.Duration // zero uses DefaultUpstreamTimeout
	RequestsPerSecond float64       // zero disables client-side limiting
	Logger            *log.Logger
}

// SpotifyClient issues player requests on behalf of whichever access token it is handed.
//
// It holds no credential of its own so one client serves every session.
type SpotifyClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// NewSpotifyClient creates a [SpotifyClient].
func NewSpotifyClient(opts SpotifyClientOpts) *SpotifyClient {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &SpotifyClient{baseURL: baseURL, httpClient: httpClient, limiter: limiter, logger: logger}
}

// do performs an authenticated request against the Web API.
//
// Non-2xx responses become a [shared.UpstreamError] wrapping [shared.ErrUpstreamRejected].
// The body is decoded into result only on 200 with content; a 204 leaves result untouched and returns [http.StatusNoContent].
func (c *SpotifyClient) do(ctx context.Context, token, method, endpoint string, query url.Values, result any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter wait failed: %w", err)
		}
	}

	apiURL := c.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observeUpstream(endpoint, method, 0, start)
		return 0, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	observeUpstream(endpoint, method, resp.StatusCode, start)
	c.logger.Debug("spotify request", "method", method, "endpoint", endpoint, "status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, shared.NewUpstreamError(shared.ErrUpstreamRejected, resp.StatusCode, body)
	}

	if result != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

func (c *SpotifyClient) send(ctx context.Context, token, method, endpoint string, query url.Values) error {
	_, err := c.do(ctx, token, method, endpoint, query, nil)
	return err
}

// Play resumes playback on the active device.
func (c *SpotifyClient) Play(ctx context.Context, token string) error {
	return c.send(ctx, token, http.MethodPut, "/me/player/play", nil)
}

// Pause pauses playback on the active device.
func (c *SpotifyClient) Pause(ctx context.Context, token string) error {
	return c.send(ctx, token, http.MethodPut, "/me/player/pause", nil)
}

func (c *SpotifyClient) Next(ctx context.Context, token string) error {
	return c.send(ctx, token, http.MethodPost, "/me/player/next", nil)
}

func (c *SpotifyClient) Previous(ctx context.Context, token string) error {
	return c.send(ctx, token, http.MethodPost, "/me/player/previous", nil)
}

// SetVolume sets the device volume to percent.
func (c *SpotifyClient) SetVolume(ctx context.Context, token string, percent int) error {
	q := url.Values{"volume_percent": {strconv.Itoa(percent)}}
	return c.send(ctx, token, http.MethodPut, "/me/player/volume", q)
}

func (c *SpotifyClient) SetShuffle(ctx context.Context, token string, state bool) error {
	q := url.Values{"state": {strconv.FormatBool(state)}}
	return c.send(ctx, token, http.MethodPut, "/me/player/shuffle", q)
}

func (c *SpotifyClient) SetRepeat(ctx context.Context, token string, state models.RepeatState) error {
	q := url.Values{"state": {string(state)}}
	return c.send(ctx, token, http.MethodPut, "/me/player/repeat", q)
}

// PlayerState fetches the current player state. It returns nil without error when no device is active (204).
func (c *SpotifyClient) PlayerState(ctx context.Context, token string) (*models.PlayerState, error) {
	var state models.PlayerState
	status, err := c.do(ctx, token, http.MethodGet, "/me/player", nil, &state)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &state, nil
}

// CurrentlyPlaying summarizes the playing track. It returns nil without error when nothing is playing.
func (c *SpotifyClient) CurrentlyPlaying(ctx context.Context, token string) (*models.Track, error) {
	var playing struct {
		IsPlaying bool         `json:"is_playing"`
		Item      *models.Item `json:"item"`
	}
	status, err := c.do(ctx, token, http.MethodGet, "/me/player/currently-playing", nil, &playing)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || playing.Item == nil {
		return nil, nil
	}
	return playing.Item.Summary(playing.IsPlaying), nil
}

// Profile retrieves the profile of the token's owner.
func (c *SpotifyClient) Profile(ctx context.Context, token string) (*SpotifyUser, error) {
	var user SpotifyUser
	if _, err := c.do(ctx, token, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
