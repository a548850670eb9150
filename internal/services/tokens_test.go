package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/repositories"
	"github.com/desertthunder/spotremote/internal/shared"
	tu "github.com/desertthunder/spotremote/internal/testing"
)

const testRedirectURI = "http://127.0.0.1:5001/callback"

type fixture struct {
	stub       *tu.StubSpotify
	store      *repositories.MemoryStore
	tokens     *TokenManager
	dispatcher *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stub := tu.NewStubSpotify(t)
	store := repositories.NewMemoryStore(0)

	tokens, err := NewTokenManager(TokenManagerOpts{
		ClientID:     tu.StubClientID,
		ClientSecret: tu.StubClientSecret,
		RedirectURI:  testRedirectURI,
		AuthURL:      stub.AuthURL(),
		TokenURL:     stub.TokenURL(),
		Store:        store,
	})
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}

	dispatcher := NewDispatcher(DispatcherOpts{
		Player:          NewSpotifyClient(SpotifyClientOpts{BaseURL: stub.APIURL()}),
		Tokens:          tokens,
		VolumeStep:      10,
		SerializeWrites: true,
	})

	return &fixture{stub: stub, store: store, tokens: tokens, dispatcher: dispatcher}
}

func TestTokenManager(t *testing.T) {
	ctx := context.Background()

	t.Run("NewTokenManager", func(t *testing.T) {
		t.Run("Missing Client ID", func(t *testing.T) {
			_, err := NewTokenManager(TokenManagerOpts{ClientSecret: "s", Store: repositories.NewMemoryStore(0)})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("Missing Store", func(t *testing.T) {
			_, err := NewTokenManager(TokenManagerOpts{ClientID: "c", ClientSecret: "s"})
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Default Endpoints", func(t *testing.T) {
			m, err := NewTokenManager(TokenManagerOpts{ClientID: "c", ClientSecret: "s", Store: repositories.NewMemoryStore(0)})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if m.config.Endpoint.TokenURL != spotifyTokenURL {
				t.Errorf("expected default token URL, got %s", m.config.Endpoint.TokenURL)
			}
		})
	})

	t.Run("BeginAuthorization", func(t *testing.T) {
		f := newFixture(t)
		if err := f.store.Save(ctx, "s1", &models.Credential{AccessToken: "OLD"}); err != nil {
			t.Fatalf("failed to seed: %v", err)
		}

		authURL, err := f.tokens.BeginAuthorization(ctx, "s1", "xyz")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		u, err := url.Parse(authURL)
		if err != nil {
			t.Fatalf("invalid URL: %v", err)
		}
		if !strings.HasPrefix(authURL, f.stub.AuthURL()) {
			t.Errorf("expected authorize endpoint, got %s", authURL)
		}

		q := u.Query()
		want := map[string]string{
			"client_id":     tu.StubClientID,
			"response_type": "code",
			"redirect_uri":  testRedirectURI,
			"state":         "xyz",
			"scope":         strings.Join(Scopes, " "),
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("expected %s=%q, got %q", k, v, got)
			}
		}

		if _, err := f.store.Get(ctx, "s1"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected previous credential to be cleared, got %v", err)
		}
		if len(f.stub.TokenCalls()) != 0 {
			t.Error("expected no token endpoint calls")
		}
	})

	t.Run("BeginAuthorization requires state", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.tokens.BeginAuthorization(ctx, "s1", ""); !errors.Is(err, shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("CompleteAuthorization", func(t *testing.T) {
		t.Run("stores the exchanged pair", func(t *testing.T) {
			f := newFixture(t)
			f.stub.OnCode("abc123", tu.TokenResponse{AccessToken: "AT1", RefreshToken: "RT1", ExpiresIn: 3600})

			before := time.Now()
			cred, err := f.tokens.CompleteAuthorization(ctx, "s1", "abc123")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cred.AccessToken != "AT1" || cred.RefreshToken != "RT1" {
				t.Errorf("unexpected credential %+v", cred)
			}
			if cred.ExpiresAt.Before(before.Add(59*time.Minute)) || cred.ExpiresAt.After(time.Now().Add(61*time.Minute)) {
				t.Errorf("expected expiry about an hour out, got %v", cred.ExpiresAt)
			}

			stored, err := f.store.Get(ctx, "s1")
			if err != nil {
				t.Fatalf("expected stored credential, got %v", err)
			}
			if stored.AccessToken != "AT1" {
				t.Errorf("expected stored AT1, got %s", stored.AccessToken)
			}

			calls := f.stub.TokenCalls()
			if len(calls) != 1 {
				t.Fatalf("expected 1 token call, got %d", len(calls))
			}
			form := calls[0].Form
			if form.Get("grant_type") != "authorization_code" || form.Get("code") != "abc123" {
				t.Errorf("unexpected token form %v", form)
			}
			if form.Get("redirect_uri") != testRedirectURI {
				t.Errorf("expected redirect_uri %s, got %s", testRedirectURI, form.Get("redirect_uri"))
			}
			if !strings.HasPrefix(calls[0].Authorization, "Basic ") {
				t.Errorf("expected basic client auth, got %q", calls[0].Authorization)
			}
		})

		t.Run("rejected code", func(t *testing.T) {
			f := newFixture(t)

			_, err := f.tokens.CompleteAuthorization(ctx, "s1", "bogus")
			if !errors.Is(err, shared.ErrExchangeFailed) {
				t.Fatalf("expected ErrExchangeFailed, got %v", err)
			}
			if status := shared.StatusOf(err); status != http.StatusBadRequest {
				t.Errorf("expected upstream status 400, got %d", status)
			}
			var ue *shared.UpstreamError
			if !errors.As(err, &ue) || !strings.Contains(ue.Body, "invalid_grant") {
				t.Errorf("expected upstream body to be kept, got %v", err)
			}
			if f.store.Len() != 0 {
				t.Error("expected nothing stored")
			}
		})

		t.Run("missing code", func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.tokens.CompleteAuthorization(ctx, "s1", ""); !errors.Is(err, shared.ErrMissingCode) {
				t.Errorf("expected ErrMissingCode, got %v", err)
			}
			if len(f.stub.TokenCalls()) != 0 {
				t.Error("expected no token endpoint calls")
			}
		})

		t.Run("empty session is not persisted", func(t *testing.T) {
			f := newFixture(t)
			f.stub.OnCode("abc123", tu.TokenResponse{AccessToken: "AT1", RefreshToken: "RT1"})

			if _, err := f.tokens.CompleteAuthorization(ctx, "", "abc123"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if f.store.Len() != 0 {
				t.Error("expected nothing stored")
			}
		})
	})

	t.Run("Refresh", func(t *testing.T) {
		t.Run("keeps refresh token when not rotated", func(t *testing.T) {
			f := newFixture(t)
			f.stub.OnRefresh("RT1", tu.TokenResponse{AccessToken: "AT2", ExpiresIn: 3600})

			cred, err := f.tokens.Refresh(ctx, "s1", &models.Credential{AccessToken: "AT1", RefreshToken: "RT1"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cred.AccessToken != "AT2" || cred.RefreshToken != "RT1" {
				t.Errorf("expected AT2/RT1, got %+v", cred)
			}

			stored, _ := f.store.Get(ctx, "s1")
			if stored == nil || stored.AccessToken != "AT2" || stored.RefreshToken != "RT1" {
				t.Errorf("expected stored AT2/RT1, got %+v", stored)
			}

			form := f.stub.TokenCalls()[0].Form
			if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "RT1" {
				t.Errorf("unexpected refresh form %v", form)
			}
		})

		t.Run("adopts rotated refresh token", func(t *testing.T) {
			f := newFixture(t)
			f.stub.OnRefresh("RT1", tu.TokenResponse{AccessToken: "AT2", RefreshToken: "RT2"})

			cred, err := f.tokens.Refresh(ctx, "s1", &models.Credential{AccessToken: "AT1", RefreshToken: "RT1"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cred.RefreshToken != "RT2" {
				t.Errorf("expected RT2, got %s", cred.RefreshToken)
			}
		})

		t.Run("rejected refresh token", func(t *testing.T) {
			f := newFixture(t)

			_, err := f.tokens.Refresh(ctx, "s1", &models.Credential{AccessToken: "AT1", RefreshToken: "revoked"})
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Fatalf("expected ErrRefreshFailed, got %v", err)
			}
			if !shared.IsAuthError(err) {
				t.Error("expected refresh failure to be an auth error")
			}
			if status := shared.StatusOf(err); status != http.StatusBadRequest {
				t.Errorf("expected upstream status 400, got %d", status)
			}
		})

		t.Run("without refresh token", func(t *testing.T) {
			f := newFixture(t)

			_, err := f.tokens.Refresh(ctx, "", &models.Credential{AccessToken: "AT1"})
			if !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
			if len(f.stub.TokenCalls()) != 0 {
				t.Error("expected no token endpoint calls")
			}
		})

		t.Run("bearer credential is not persisted", func(t *testing.T) {
			f := newFixture(t)
			f.stub.OnRefresh("RT1", tu.TokenResponse{AccessToken: "AT2"})

			if _, err := f.tokens.Refresh(ctx, "", &models.Credential{RefreshToken: "RT1"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if f.store.Len() != 0 {
				t.Error("expected nothing stored")
			}
		})
	})

	t.Run("EnsureValid", func(t *testing.T) {
		t.Run("unexpired credential is returned as is", func(t *testing.T) {
			f := newFixture(t)
			cred := &models.Credential{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: time.Now().Add(time.Hour)}

			got, err := f.tokens.EnsureValid(ctx, "s1", cred)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != cred {
				t.Error("expected the same credential")
			}
			if len(f.stub.TokenCalls()) != 0 {
				t.Error("expected no refresh")
			}
		})

		t.Run("unknown expiry is trusted", func(t *testing.T) {
			f := newFixture(t)
			cred := &models.Credential{AccessToken: "AT1"}

			if got, err := f.tokens.EnsureValid(ctx, "", cred); err != nil || got != cred {
				t.Errorf("expected credential unchanged, got %v, %v", got, err)
			}
		})

		t.Run("expired credential is refreshed", func(t *testing.T) {
			f := newFixture(t)
			f.stub.OnRefresh("RT1", tu.TokenResponse{AccessToken: "AT2", ExpiresIn: 3600})
			f.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

			cred := &models.Credential{AccessToken: "AT1", RefreshToken: "RT1", ExpiresAt: time.Now().Add(time.Hour)}
			got, err := f.tokens.EnsureValid(ctx, "s1", cred)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.AccessToken != "AT2" {
				t.Errorf("expected AT2, got %s", got.AccessToken)
			}
		})

		t.Run("expired without refresh token", func(t *testing.T) {
			f := newFixture(t)
			cred := &models.Credential{AccessToken: "AT1", ExpiresAt: time.Now().Add(-time.Minute)}

			if _, err := f.tokens.EnsureValid(ctx, "", cred); !errors.Is(err, shared.ErrRefreshFailed) {
				t.Errorf("expected ErrRefreshFailed, got %v", err)
			}
		})

		t.Run("no credential", func(t *testing.T) {
			f := newFixture(t)
			if _, err := f.tokens.EnsureValid(ctx, "s1", nil); !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("Credential", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.tokens.Credential(ctx, "missing")
		if !errors.Is(err, shared.ErrNotAuthenticated) || !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrNotAuthenticated wrapping ErrSessionNotFound, got %v", err)
		}

		if _, err := f.tokens.Credential(ctx, ""); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated for empty session, got %v", err)
		}
	})

	t.Run("Logout", func(t *testing.T) {
		f := newFixture(t)
		_ = f.store.Save(ctx, "s1", &models.Credential{AccessToken: "AT1"})

		if err := f.tokens.Logout(ctx, "s1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.store.Len() != 0 {
			t.Error("expected session to be removed")
		}
	})
}
