package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const botFrameworkScope = "https://api.botframework.com/.default"

// TokenSource hands out bearer tokens for outbound connector calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// AppCredentials runs the client-credentials grant for the bot's app
// registration and caches the token until shortly before it expires. With an
// empty AppID it returns no token, which is what the local emulator expects.
type AppCredentials struct {
	AppID       string
	AppPassword string
	TokenURL    string
	HTTPClient  *http.Client

	once   sync.Once
	source oauth2.TokenSource
}

func (c *AppCredentials) Token(ctx context.Context) (string, error) {
	if c.AppID == "" {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", &TransportError{Op: "token", Err: err}
	}

	c.once.Do(func() {
		cfg := clientcredentials.Config{
			ClientID:     c.AppID,
			ClientSecret: c.AppPassword,
			TokenURL:     c.TokenURL,
			Scopes:       []string{botFrameworkScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		// The source outlives any single request, so it gets its own context.
		base := context.Background()
		if c.HTTPClient != nil {
			base = context.WithValue(base, oauth2.HTTPClient, c.HTTPClient)
		}
		c.source = cfg.TokenSource(base)
	})

	tok, err := c.source.Token()
	if err != nil {
		return "", tokenError(err)
	}
	return tok.AccessToken, nil
}

func tokenError(err error) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) || re.Response == nil {
		return &TransportError{Op: "token", Err: err}
	}
	status := re.Response.StatusCode
	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		err = fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return &TransportError{Op: "token", StatusCode: status, Err: err}
}
