package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

type fakeAuthorizer struct {
	cred  *models.Credential
	err   error
	calls []string
}

func (f *fakeAuthorizer) CompleteAuthorization(ctx context.Context, sessionID, code string) (*models.Credential, error) {
	f.calls = append(f.calls, sessionID+":"+code)
	if code == "" {
		return nil, shared.ErrMissingCode
	}
	return f.cred, f.err
}

func TestBasicRouter(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.Method))
	})

	t.Run("methods per path", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/thing", ok)
		r.Handle(http.MethodPost, "/thing", ok)

		for _, method := range []string{http.MethodGet, http.MethodPost} {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(method, "/thing", nil))
			if rec.Code != http.StatusOK || rec.Body.String() != method {
				t.Errorf("%s: expected 200 %s, got %d %s", method, method, rec.Code, rec.Body.String())
			}
		}

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/thing", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec.Header().Get("Allow") != "GET, POST" {
			t.Errorf("expected Allow: GET, POST, got %q", rec.Header().Get("Allow"))
		}
	})

	t.Run("HEAD falls back to GET", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/thing", ok)

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/thing", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("middleware order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mark("first"), mark("second"))
		r.Handle(http.MethodGet, "/thing", ok)

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/thing", nil))
		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("expected [first second], got %v", order)
		}
	})

	t.Run("middleware sees unmatched paths", func(t *testing.T) {
		hit := false
		r := NewBasicRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				hit = true
				next.ServeHTTP(w, req)
			})
		})

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
		if !hit || rec.Code != http.StatusNotFound {
			t.Errorf("expected middleware to run for 404, hit=%t code=%d", hit, rec.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	logger := log.New(io.Discard)

	t.Run("Sessions", func(t *testing.T) {
		var seen string
		h := Sessions(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = SessionID(r.Context())
		}))

		t.Run("issues a cookie", func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			cookies := rec.Result().Cookies()
			if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].Value != seen {
				t.Errorf("expected session cookie matching %q, got %v", seen, cookies)
			}
			if !cookies[0].HttpOnly {
				t.Error("expected HttpOnly cookie")
			}
		})

		t.Run("keeps a valid cookie", func(t *testing.T) {
			id := shared.GenerateID()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: id})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if seen != id {
				t.Errorf("expected %s, got %s", id, seen)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("expected no new cookie")
			}
		})

		t.Run("replaces a malformed cookie", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "../../etc"})

			h.ServeHTTP(httptest.NewRecorder(), req)
			if seen == "../../etc" || seen == "" {
				t.Errorf("expected a fresh id, got %q", seen)
			}
		})
	})

	t.Run("Recover", func(t *testing.T) {
		h := Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("CORS ignores other origins", func(t *testing.T) {
		h := CORS(testFrontendURL)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "http://evil.test")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS headers for a foreign origin")
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	get := func(h *OAuthHandler, query string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
		return rec
	}

	t.Run("success", func(t *testing.T) {
		auth := &fakeAuthorizer{cred: &models.Credential{AccessToken: "AT1", RefreshToken: "RT1"}}
		h := NewOAuthHandler(auth, "cli", "xyz")

		rec := get(h, "code=abc123&state=xyz")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		result := <-h.Result()
		if result.Error() != nil || result.Credential.AccessToken != "AT1" {
			t.Errorf("unexpected result %+v", result)
		}
		if len(auth.calls) != 1 || auth.calls[0] != "cli:abc123" {
			t.Errorf("expected exchange for cli session, got %v", auth.calls)
		}
	})

	t.Run("state mismatch", func(t *testing.T) {
		auth := &fakeAuthorizer{}
		h := NewOAuthHandler(auth, "cli", "xyz")

		if rec := get(h, "code=abc123&state=nope"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-h.Result()
		if !errors.Is(result.Error(), shared.ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", result.Error())
		}
		if len(auth.calls) != 0 {
			t.Error("expected no exchange")
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthorizer{err: shared.ErrExchangeFailed}, "cli", "xyz")

		if rec := get(h, "code=abc123&state=xyz"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-h.Result(); !errors.Is(result.Error(), shared.ErrExchangeFailed) {
			t.Errorf("expected ErrExchangeFailed, got %v", result.Error())
		}
	})

	t.Run("only the first callback counts", func(t *testing.T) {
		h := NewOAuthHandler(&fakeAuthorizer{cred: &models.Credential{AccessToken: "AT1"}}, "cli", "xyz")

		get(h, "code=abc123&state=xyz")
		if rec := get(h, "code=abc123&state=xyz"); rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay to be rejected, got %d", rec.Code)
		}
	})
}

func TestServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := NewHTTPServer("127.0.0.1:0", http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, srv, time.Second, log.New(io.Discard)) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
