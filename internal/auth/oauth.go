// Package auth implements the Calendly OAuth connect flow: signed state
// issuance, the authorization redirect, and the callback exchange that
// persists the user's access token.
package auth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"

	"github.com/gostudy/bookbot/internal/config"
	"github.com/gostudy/bookbot/internal/logging"
)

// TokenStore persists exchanged access tokens keyed by chat identity.
type TokenStore interface {
	Save(ctx context.Context, identity, accessToken string) error
}

// Exchanger drives the authorization-code flow against Calendly.
type Exchanger struct {
	oauth  *oauth2.Config
	states *StateSigner
	store  TokenStore
	log    *logging.Logger
}

// NewExchanger builds an Exchanger from the Calendly app settings. Empty
// endpoint URLs fall back to the public Calendly OAuth surface.
func NewExchanger(cfg config.CalendlyConfig, states *StateSigner, store TokenStore, log *logging.Logger) *Exchanger {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = config.DefaultAuthURL
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = config.DefaultTokenURL
	}
	return &Exchanger{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:  authURL,
				TokenURL: tokenURL,
			},
		},
		states: states,
		store:  store,
		log:    log.Sub("auth"),
	}
}

// AuthorizationURL returns the Calendly consent URL for the given
// identity, with a freshly signed state parameter.
func (e *Exchanger) AuthorizationURL(identity string) (string, error) {
	state, err := e.states.Sign(identity)
	if err != nil {
		return "", err
	}
	return e.oauth.AuthCodeURL(state), nil
}

// HandleCallback verifies the state, exchanges the code for an access
// token and persists it. It returns the identity the token now belongs
// to along with the token itself.
func (e *Exchanger) HandleCallback(ctx context.Context, code, state string) (string, string, error) {
	if code == "" || state == "" {
		return "", "", ErrMissingParameter
	}

	identity, err := e.states.Verify(state)
	if err != nil {
		return "", "", err
	}

	token, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", "", &ExchangeError{Status: retrieveErr.Response.StatusCode, Err: err}
		}
		return "", "", &ExchangeError{Err: err}
	}

	if err := e.store.Save(ctx, identity, token.AccessToken); err != nil {
		return "", "", err
	}

	e.log.Info().Str("identity", identity).Msg("access token stored")
	return identity, token.AccessToken, nil
}
