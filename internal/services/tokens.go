package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
	"golang.org/x/oauth2"
)

// Scopes requested on every authorization.
var Scopes = []string{
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-read-private",
	"user-read-email",
}

// TokenManagerOpts configures a [TokenManager].
type TokenManagerOpts struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AuthURL      string
	TokenURL     string
	Store        models.CredentialStore
	HTTPClient   *http.Client
	Logger       *log.Logger
}

// TokenManager runs the authorization-code flow and keeps session credentials fresh.
//
// Credentials passed in with an empty session ID (bearer header callers) are refreshed in place but never persisted.
type TokenManager struct {
	config     *oauth2.Config
	store      models.CredentialStore
	httpClient *http.Client
	logger     *log.Logger
	now        func() time.Time
}

// NewTokenManager creates a [TokenManager]. Client ID and secret are required.
func NewTokenManager(opts TokenManagerOpts) (*TokenManager, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: credential store is required", shared.ErrInvalidInput)
	}

	authURL, tokenURL := opts.AuthURL, opts.TokenURL
	if authURL == "" {
		authURL = spotifyAuthURL
	}
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultUpstreamTimeout}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &TokenManager{
		config: &oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			RedirectURL:  opts.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		store:      opts.Store,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// oauthContext hands our HTTP client to the oauth2 package.
func (m *TokenManager) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

// BeginAuthorization clears any credential held by the session and returns the consent URL.
//
// A fresh login replaces whatever the session was using before, even if the user never completes it.
func (m *TokenManager) BeginAuthorization(ctx context.Context, sessionID, state string) (string, error) {
	if state == "" {
		return "", fmt.Errorf("%w: state is required", shared.ErrInvalidState)
	}
	if sessionID != "" {
		if err := m.store.Delete(ctx, sessionID); err != nil {
			return "", fmt.Errorf("failed to clear session: %w", err)
		}
	}
	return m.config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true")), nil
}

// CompleteAuthorization exchanges code for a token pair and stores it under sessionID.
func (m *TokenManager) CompleteAuthorization(ctx context.Context, sessionID, code string) (*models.Credential, error) {
	if code == "" {
		return nil, shared.ErrMissingCode
	}

	tok, err := m.config.Exchange(m.oauthContext(ctx), code)
	observeToken("exchange", err)
	if err != nil {
		m.logger.Warn("authorization code exchange failed", "session", sessionID, "error", err)
		return nil, upstreamTokenError(shared.ErrExchangeFailed, err)
	}

	cred := models.CredentialFromToken(tok)
	if sessionID != "" {
		if err := m.store.Save(ctx, sessionID, cred); err != nil {
			return nil, fmt.Errorf("failed to store credential: %w", err)
		}
	}

	m.logger.Info("session authorized", "session", sessionID, "expires_at", cred.ExpiresAt)
	return cred, nil
}

// Refresh trades the refresh token for a new access token.
//
// When upstream omits a new refresh token the previous one is kept.
func (m *TokenManager) Refresh(ctx context.Context, sessionID string, cred *models.Credential) (*models.Credential, error) {
	if !cred.CanRefresh() {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrRefreshFailed)
	}

	src := m.config.TokenSource(m.oauthContext(ctx), &oauth2.Token{RefreshToken: cred.RefreshToken})
	tok, err := src.Token()
	observeToken("refresh", err)
	if err != nil {
		m.logger.Warn("token refresh failed", "session", sessionID, "error", err)
		return nil, upstreamTokenError(shared.ErrRefreshFailed, err)
	}

	next := models.CredentialFromToken(tok)
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}

	if sessionID != "" {
		if err := m.store.Save(ctx, sessionID, next); err != nil {
			return nil, fmt.Errorf("failed to store refreshed credential: %w", err)
		}
	}

	m.logger.Debug("token refreshed", "session", sessionID, "expires_at", next.ExpiresAt)
	return next, nil
}

// EnsureValid returns cred unchanged while it is usable and refreshes it once it has expired.
func (m *TokenManager) EnsureValid(ctx context.Context, sessionID string, cred *models.Credential) (*models.Credential, error) {
	if cred == nil {
		return nil, shared.ErrNotAuthenticated
	}
	if !cred.Expired(m.now()) {
		return cred, nil
	}
	if !cred.CanRefresh() {
		if cred.AccessToken == "" {
			return nil, shared.ErrNotAuthenticated
		}
		return nil, fmt.Errorf("%w: access token expired and no refresh token", shared.ErrRefreshFailed)
	}
	return m.Refresh(ctx, sessionID, cred)
}

// Credential loads the credential stored for sessionID.
//
// A missing session is reported as [shared.ErrNotAuthenticated] wrapping [shared.ErrSessionNotFound].
func (m *TokenManager) Credential(ctx context.Context, sessionID string) (*models.Credential, error) {
	if sessionID == "" {
		return nil, shared.ErrNotAuthenticated
	}
	cred, err := m.store.Get(ctx, sessionID)
	if errors.Is(err, shared.ErrSessionNotFound) {
		return nil, fmt.Errorf("%w: %w", shared.ErrNotAuthenticated, err)
	}
	return cred, err
}

// Logout forgets the credential stored for sessionID.
func (m *TokenManager) Logout(ctx context.Context, sessionID string) error {
	if err := m.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	m.logger.Info("session logged out", "session", sessionID)
	return nil
}

// upstreamTokenError keeps the status and body from a token endpoint rejection.
func upstreamTokenError(kind, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return shared.NewUpstreamError(kind, re.Response.StatusCode, re.Body)
	}
	return fmt.Errorf("%w: %v", kind, err)
}
