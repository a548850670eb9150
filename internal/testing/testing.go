// package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const (
	StubClientID     = "client"
	StubClientSecret = "secret"
)

// TokenResponse is what the stub token endpoint returns for a code or refresh token.
//
// An empty RefreshToken is omitted from the JSON, as Spotify does on most refreshes.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
}

// Call is one request recorded by [StubSpotify].
type Call struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	Form          url.Values
}

// Endpoint renders the call as "METHOD /path".
func (c Call) Endpoint() string {
	return c.Method + " " + c.Path
}

// player is the simulated device behind GET /me/player.
type player struct {
	volume  int
	shuffle bool
	repeat  string
}

// StubSpotify serves the accounts token endpoint under /api/token and the Web API under /v1.
//
// API requests with a bearer token that has not been accepted get 401.
// Set PlayerState or Currently to a JSON document to serve it; leave empty for 204.
// [StubSpotify.SetPlayer] instead simulates a device whose volume, shuffle and repeat follow the write endpoints.
type StubSpotify struct {
	Server *httptest.Server

	mu         sync.Mutex
	player     *player
	codes      map[string]TokenResponse
	refreshes  map[string]TokenResponse
	valid      map[string]bool
	rejects    map[string]int
	calls      []Call
	tokenCalls []Call

	PlayerState string
	Currently   string
	Profile     string
}

// NewStubSpotify starts a stub that is closed when the test ends.
func NewStubSpotify(t *testing.T) *StubSpotify {
	t.Helper()

	s := &StubSpotify{
		codes:     make(map[string]TokenResponse),
		refreshes: make(map[string]TokenResponse),
		valid:     make(map[string]bool),
		rejects:   make(map[string]int),
		Profile:   `{"id":"user1","display_name":"Test User","email":"test@example.com"}`,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Server.Close)
	return s
}

func (s *StubSpotify) AuthURL() string  { return s.Server.URL + "/authorize" }
func (s *StubSpotify) TokenURL() string { return s.Server.URL + "/api/token" }
func (s *StubSpotify) APIURL() string   { return s.Server.URL + "/v1" }

// OnCode makes the token endpoint answer code with resp. The access token is accepted by the API.
func (s *StubSpotify) OnCode(code string, resp TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[code] = resp
	s.valid[resp.AccessToken] = true
}

// OnRefresh makes the token endpoint answer refreshToken with resp. The access token is accepted by the API.
func (s *StubSpotify) OnRefresh(refreshToken string, resp TokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes[refreshToken] = resp
	s.valid[resp.AccessToken] = true
}

// Accept marks an access token valid for API requests.
func (s *StubSpotify) Accept(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.valid[token] = true
}

// Revoke makes the API answer 401 for token.
func (s *StubSpotify) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.valid, token)
}

// Reject makes the API answer status for endpoint, written as "METHOD /path" relative to /v1.
func (s *StubSpotify) Reject(endpoint string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[endpoint] = status
}

// SetPlayer simulates an active device with the given state.
func (s *StubSpotify) SetPlayer(volume int, shuffle bool, repeat string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.player = &player{volume: volume, shuffle: shuffle, repeat: repeat}
}

// Player reports the simulated device state.
func (s *StubSpotify) Player() (volume int, shuffle bool, repeat string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return 0, false, ""
	}
	return s.player.volume, s.player.shuffle, s.player.repeat
}

// Calls returns the recorded Web API calls, with paths relative to /v1.
func (s *StubSpotify) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// TokenCalls returns the recorded token endpoint calls.
func (s *StubSpotify) TokenCalls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.tokenCalls...)
}

// Endpoints returns the recorded Web API calls as "METHOD /path" strings.
func (s *StubSpotify) Endpoints() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Endpoint()
	}
	return out
}

func (s *StubSpotify) serve(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/token":
		s.serveToken(w, r)
	case strings.HasPrefix(r.URL.Path, "/v1/"):
		s.serveAPI(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *StubSpotify) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	s.tokenCalls = append(s.tokenCalls, Call{
		Method: r.Method, Path: r.URL.Path, Authorization: r.Header.Get("Authorization"), Form: r.PostForm,
	})
	s.mu.Unlock()

	id, secret, ok := r.BasicAuth()
	if !ok || id != StubClientID || secret != StubClientSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}

	var (
		resp  TokenResponse
		found bool
	)
	s.mu.Lock()
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		resp, found = s.codes[r.PostForm.Get("code")]
	case "refresh_token":
		resp, found = s.refreshes[r.PostForm.Get("refresh_token")]
	}
	s.mu.Unlock()

	if !found {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid_grant", "error_description": "Invalid authorization code",
		})
		return
	}

	if resp.TokenType == "" {
		resp.TokenType = "Bearer"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *StubSpotify) serveAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1")
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: r.Method, Path: path, Query: r.URL.Query(), Authorization: r.Header.Get("Authorization"),
	})
	valid := s.valid[token]
	reject := s.rejects[r.Method+" "+path]
	playerState, currently, profile := s.PlayerState, s.Currently, s.Profile
	s.mu.Unlock()

	if !valid {
		writeAPIError(w, http.StatusUnauthorized, "The access token expired")
		return
	}
	if reject != 0 {
		writeAPIError(w, reject, http.StatusText(reject))
		return
	}

	switch r.Method + " " + path {
	case "GET /me":
		writeRaw(w, profile)
	case "GET /me/player":
		if playerState == "" {
			playerState = s.renderPlayer()
		}
		writeRaw(w, playerState)
	case "GET /me/player/currently-playing":
		writeRaw(w, currently)
	case "PUT /me/player/volume", "PUT /me/player/shuffle", "PUT /me/player/repeat":
		s.applyWrite(path, r.URL.Query())
		w.WriteHeader(http.StatusNoContent)
	case "PUT /me/player/play", "PUT /me/player/pause", "POST /me/player/next", "POST /me/player/previous":
		w.WriteHeader(http.StatusNoContent)
	default:
		writeAPIError(w, http.StatusNotFound, "Service not found")
	}
}

func (s *StubSpotify) renderPlayer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return ""
	}
	return PlayerStateJSON(s.player.volume, s.player.shuffle, s.player.repeat)
}

func (s *StubSpotify) applyWrite(path string, q url.Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return
	}
	switch path {
	case "/me/player/volume":
		if v, err := strconv.Atoi(q.Get("volume_percent")); err == nil {
			s.player.volume = v
		}
	case "/me/player/shuffle":
		s.player.shuffle = q.Get("state") == "true"
	case "/me/player/repeat":
		s.player.repeat = q.Get("state")
	}
}

func writeRaw(w http.ResponseWriter, body string) {
	if body == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	io.WriteString(w, body)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"status": status, "message": message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// PlayerStateJSON renders a minimal GET /me/player document.
func PlayerStateJSON(volume int, shuffle bool, repeat string) string {
	return fmt.Sprintf(`{"device":{"id":"d1","name":"Desk","type":"Computer","is_active":true,"volume_percent":%d},`+
		`"shuffle_state":%t,"repeat_state":%q,"is_playing":true,"progress_ms":1000}`, volume, shuffle, repeat)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
