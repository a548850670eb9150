package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/server"
	"github.com/desertthunder/spotremote/internal/shared"
	"github.com/urfave/cli/v3"
)

// Login performs the OAuth2 authorization flow for the CLI session.
//
// Starts a local callback server on server.host:port, opens the browser on the consent page,
// and stores the exchanged credential under cli.session_id.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	tokens, _, err := r.services(ctx)
	if err != nil {
		return err
	}

	sessionID := r.config.CLI.SessionID
	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	authURL, err := tokens.BeginAuthorization(ctx, sessionID, state)
	if err != nil {
		return err
	}

	oauthHandler := server.NewOAuthHandler(tokens, sessionID, state)
	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger))
	router.Handler(oauthHandler)

	serverAddr := r.config.Server.Addr()
	httpServer := server.NewHTTPServer(serverAddr, router)

	serverErrors := make(chan error, 1)
	go func() {
		r.logger.Infof("starting OAuth callback server at %v", serverAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.openBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	wait := cmd.Duration("timeout")
	if wait <= 0 {
		wait = 2 * time.Minute
	}
	r.writePlain("→ Waiting for authorization (%v timeout)...\n", wait)

	timeout := time.NewTimer(wait)
	defer timeout.Stop()

	var result server.OAuthResult

	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return fmt.Errorf("%w: authorization timed out after %v", shared.ErrTimeout, wait)
	case <-ctx.Done():
		return ctx.Err()
	}

	if result.Error() != nil {
		return fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Credential == nil {
		return fmt.Errorf("%w: no credential received", shared.ErrExchangeFailed)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Credential stored for session %q (expires %s)\n\n", sessionID, result.Credential.ExpiresAt.Format(time.Kitchen))
	r.writePlain("You can now use: spotremote control Play\n")
	return nil
}

// Logout deletes the CLI session credential.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	tokens, _, err := r.services(ctx)
	if err != nil {
		return err
	}

	if err := tokens.Logout(ctx, r.config.CLI.SessionID); err != nil {
		return err
	}

	r.logger.Info("logged out", "session", r.config.CLI.SessionID)
	return r.writePlain("✓ Logged out\n")
}

// Sessions lists the sessions held by the credential store. Tokens are never printed.
func (r *Runner) Sessions(ctx context.Context, cmd *cli.Command) error {
	if _, _, err := r.services(ctx); err != nil {
		return err
	}

	lister, ok := r.store.(models.SessionLister)
	if !ok {
		return fmt.Errorf("%w: %s store cannot list sessions", shared.ErrNotImplemented, r.config.Store.Driver)
	}

	sessions, err := lister.List(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type sessionView struct {
			ID         string    `json:"id"`
			ExpiresAt  time.Time `json:"expires_at"`
			CanRefresh bool      `json:"can_refresh"`
			UpdatedAt  time.Time `json:"updated_at"`
		}
		views := make([]sessionView, 0, len(sessions))
		for _, sess := range sessions {
			views = append(views, sessionView{
				ID:         sess.ID,
				ExpiresAt:  sess.Credential.ExpiresAt,
				CanRefresh: sess.Credential.CanRefresh(),
				UpdatedAt:  sess.UpdatedAt,
			})
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(sessions) == 0 {
		return r.writePlainln("No stored sessions")
	}

	for _, sess := range sessions {
		marker := " "
		if sess.ID == r.config.CLI.SessionID {
			marker = "*"
		}
		r.writePlain("%s %-36s  expires %s  updated %s\n", marker, sess.ID,
			sess.Credential.ExpiresAt.Format(time.RFC3339), sess.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// Status validates the CLI session token against GET /me, refreshing it when needed.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	_, dispatcher, cred, err := r.sessionCredential(ctx)
	if err != nil {
		return err
	}

	user, err := dispatcher.Profile(ctx, r.config.CLI.SessionID, cred)
	if err != nil {
		return fmt.Errorf("token validation failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"status": "valid", "user": user}, cmd.Bool("pretty"))
	}

	name := user.DisplayName
	if name == "" {
		name = user.ID
	}
	r.writePlain("✓ Logged in as %s (%s)\n", name, user.ID)
	if user.Product != "" {
		r.writePlain("  Plan: %s\n", user.Product)
	}
	if user.Country != "" {
		r.writePlain("  Country: %s\n", user.Country)
	}
	return nil
}
