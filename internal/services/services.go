package services

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotremote/internal/models"
	"github.com/desertthunder/spotremote/internal/shared"
)

// New wires a [TokenManager] and [Dispatcher] from config around store.
//
// Both share one HTTP client so the upstream timeout applies to token and API calls alike.
func New(config *shared.Config, store models.CredentialStore, logger *log.Logger) (*TokenManager, *Dispatcher, error) {
	httpClient := &http.Client{Timeout: config.Upstream.Timeout.Duration}

	tokens, err := NewTokenManager(TokenManagerOpts{
		ClientID:     config.Credentials.Spotify.ClientID,
		ClientSecret: config.Credentials.Spotify.ClientSecret,
		RedirectURI:  config.Credentials.Spotify.RedirectURI,
		AuthURL:      config.Upstream.AuthURL,
		TokenURL:     config.Upstream.TokenURL,
		Store:        store,
		HTTPClient:   httpClient,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}

	player := NewSpotifyClient(SpotifyClientOpts{
		BaseURL:           config.Upstream.APIURL,
		HTTPClient:        httpClient,
		RequestsPerSecond: config.Upstream.RequestsPerSecond,
		Logger:            logger,
	})

	dispatcher := NewDispatcher(DispatcherOpts{
		Player:          player,
		Tokens:          tokens,
		Logger:          logger,
		VolumeStep:      config.Dispatch.VolumeStep,
		SerializeWrites: config.Dispatch.SerializeWrites,
	})

	return tokens, dispatcher, nil
}
