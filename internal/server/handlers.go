package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/services"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	stateCookieTTL = 10 * time.Minute
	maxBodyBytes   = 1 << 16
)

// errorBody is the JSON shape of every failed response.
type errorBody struct {
	Status         string `json:"status"`
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// APIOpts configures an [API].
type APIOpts struct {
	Tokens       *services.TokenManager
	Dispatcher   *services.Dispatcher
	Logger       *log.Logger
	FrontendURL  string
	CookieSecure bool
}

// API serves the login flow and the playback control endpoints.
type API struct {
	tokens       *services.TokenManager
	dispatcher   *services.Dispatcher
	logger       *log.Logger
	frontendURL  string
	cookieSecure bool
}

// NewAPI creates an [API].
func NewAPI(opts APIOpts) *API {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &API{
		tokens:       opts.Tokens,
		dispatcher:   opts.Dispatcher,
		logger:       logger,
		frontendURL:  opts.FrontendURL,
		cookieSecure: opts.CookieSecure,
	}
}

// Register installs the middleware stack and every route on r.
func (a *API) Register(r Router) {
	r.Use(Logging(a.logger), Recover(a.logger), CORS(a.frontendURL), Sessions(a.cookieSecure))

	r.Handle(http.MethodGet, "/login", http.HandlerFunc(a.Login))
	r.Handle(http.MethodGet, "/callback", http.HandlerFunc(a.Callback))
	r.Handle(http.MethodPost, "/control", http.HandlerFunc(a.Control))
	r.Handle(http.MethodGet, "/validate-token", http.HandlerFunc(a.ValidateToken))
	r.Handle(http.MethodGet, "/current-track", http.HandlerFunc(a.CurrentTrack))
	r.Handle(http.MethodPost, "/logout", http.HandlerFunc(a.Logout))
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.Health))
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())
}

// NewRouter returns a [BasicRouter] with the API registered.
func NewRouter(opts APIOpts) *BasicRouter {
	r := NewBasicRouter()
	NewAPI(opts).Register(r)
	return r
}

// Login clears the session's credential and redirects to the consent page.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		a.writeError(w, err)
		return
	}

	authURL, err := a.tokens.BeginAuthorization(r.Context(), SessionID(r.Context()), state)
	if err != nil {
		a.writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the authorization-code flow for the session.
//
// On success the browser is sent to the frontend with the token pair in the query,
// or a JSON acknowledgement is returned when no frontend is configured.
func (a *API) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: "", Path: "/", MaxAge: -1})

	if e := q.Get("error"); e != "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Error: "authorization denied: " + e})
		return
	}

	c, err := r.Cookie(StateCookie)
	if err != nil || c.Value == "" || c.Value != q.Get("state") {
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Error: shared.ErrInvalidState.Error()})
		return
	}

	cred, err := a.tokens.CompleteAuthorization(r.Context(), SessionID(r.Context()), q.Get("code"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Status: "error", Error: err.Error(), UpstreamStatus: shared.StatusOf(err),
		})
		return
	}

	if a.frontendURL == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "authenticated"})
		return
	}

	target, err := url.Parse(a.frontendURL)
	if err != nil {
		a.writeError(w, err)
		return
	}
	tq := target.Query()
	tq.Set("access_token", cred.AccessToken)
	tq.Set("refresh_token", cred.RefreshToken)
	target.RawQuery = tq.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// Control dispatches one playback action.
//
// The action is validated before any credential lookup so a bad tag never reaches upstream.
func (a *API) Control(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Status: "error", Error: "invalid JSON body"})
		return
	}

	action, err := models.ParseAction(body.Action)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if action == models.ActionNothing {
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}

	sessionID, cred, err := a.credential(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	err = a.dispatcher.Dispatch(r.Context(), models.PlaybackActionRequest{
		Action: action, SessionID: sessionID, Credential: cred,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// ValidateToken checks the credential against the profile endpoint and echoes the result.
func (a *API) ValidateToken(w http.ResponseWriter, r *http.Request) {
	sessionID, cred, err := a.credential(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"status": "invalid", "error": map[string]any{"status": http.StatusUnauthorized, "message": err.Error()},
		})
		return
	}

	user, err := a.dispatcher.Profile(r.Context(), sessionID, cred)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"status": "invalid", "error": upstreamErrorObject(err)})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "valid", "user": user})
}

// CurrentTrack returns the playing track, or 204 when nothing is playing.
func (a *API) CurrentTrack(w http.ResponseWriter, r *http.Request) {
	sessionID, cred, err := a.credential(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	track, err := a.dispatcher.CurrentTrack(r.Context(), sessionID, cred)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if track == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, track)
}

// Logout forgets the session's credential. The session cookie itself is kept.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.tokens.Logout(r.Context(), SessionID(r.Context())); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// credential resolves where this request's credential comes from.
//
// A bearer header wins and yields an unpersisted credential with an empty session id.
// Otherwise the session cookie's stored credential is used.
func (a *API) credential(r *http.Request) (string, *models.Credential, error) {
	if token, ok := bearerToken(r); ok {
		return "", &models.Credential{AccessToken: token}, nil
	}

	sessionID := SessionID(r.Context())
	cred, err := a.tokens.Credential(r.Context(), sessionID)
	if err != nil {
		return "", nil, err
	}
	return sessionID, cred, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// statusFor maps a domain error onto the response status.
func statusFor(err error) int {
	switch {
	case shared.IsAuthError(err):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrUnknownAction), errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrMissingCode), errors.Is(err, shared.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrVolumeStateUnavailable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Status: "error", Error: err.Error(), UpstreamStatus: shared.StatusOf(err)}

	switch status {
	case http.StatusUnauthorized:
		body.Error = err.Error() + "; please log in"
	case http.StatusInternalServerError:
		a.logger.Error("request failed", "error", err)
	}

	writeJSON(w, status, body)
}

// upstreamErrorObject extracts Spotify's {"error":{...}} object from a rejection,
// falling back to a status/message pair.
func upstreamErrorObject(err error) any {
	var ue *shared.UpstreamError
	if errors.As(err, &ue) {
		var payload struct {
			Error json.RawMessage `json:"error"`
		}
		if json.Unmarshal([]byte(ue.Body), &payload) == nil && len(payload.Error) > 0 {
			return payload.Error
		}
		return map[string]any{"status": ue.Status, "message": err.Error()}
	}
	return map[string]any{"status": http.StatusUnauthorized, "message": err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
