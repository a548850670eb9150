package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// Authorizer completes an authorization-code exchange for a session. [services.TokenManager] implements it.
type Authorizer interface {
	CompleteAuthorization(ctx context.Context, sessionID, code string) (*models.Credential, error)
}

// OAuthResult contains the result of an OAuth authorization flow.
type OAuthResult struct {
	Credential *models.Credential
	err        error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the one-shot callback of the CLI login flow.
// Implements the Handler interface for registration with a Router.
type OAuthHandler struct {
	auth        Authorizer
	sessionID   string
	state       string
	resultChan  chan OAuthResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewOAuthHandler creates a callback handler that stores the exchanged credential under sessionID.
// The state token should be cryptographically random for CSRF protection.
func NewOAuthHandler(auth Authorizer, sessionID, state string) *OAuthHandler {
	return &OAuthHandler{
		auth:       auth,
		sessionID:  sessionID,
		state:      state,
		resultChan: make(chan OAuthResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *OAuthHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the state parameter, completes the exchange, and sends the result through the result channel.
// Only the first callback is processed.
func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(OAuthResult{err: shared.ErrInvalidState})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	if errParam := q.Get("error"); errParam != "" {
		err := fmt.Errorf("%w: authorization denied: %s %s", shared.ErrNotAuthenticated, errParam, q.Get("error_description"))
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	cred, err := h.auth.CompleteAuthorization(r.Context(), h.sessionID, q.Get("code"))
	if err != nil {
		h.Send(OAuthResult{err: err})
		http.Error(w, "Authorization failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.Send(OAuthResult{Credential: cred})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, callbackPage)
}

const callbackPage = `<!DOCTYPE html>
<html>
<head>
<title>spotremote</title>
<style>
body { font-family: system-ui, sans-serif; display: grid; place-items: center; height: 100vh; margin: 0; background: #121212; }
main { text-align: center; color: #b3b3b3; }
h1 { color: #1DB954; }
</style>
</head>
<body>
<main>
<h1>Remote connected</h1>
<p>Spotify authorized this terminal. You can close this tab.</p>
</main>
</body>
</html>
`

// Send sends the OAuth result through the channel (only once).
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving OAuth flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.resultChan
}
