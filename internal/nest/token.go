package nest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const (
	tokenFileMode = 0o600
	tokenDirMode  = 0o700
)

// loadToken reads the cached token. A missing file yields (nil, nil).
func loadToken(path string) (*oauth2.Token, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading token cache: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parsing token cache %s: %w", path, err)
	}
	if tok.AccessToken == "" {
		return nil, nil
	}
	return &tok, nil
}

// saveToken writes the token cache with owner-only permissions.
func saveToken(path string, tok *oauth2.Token) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), tokenDirMode); err != nil {
		return fmt.Errorf("creating token cache directory: %w", err)
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(path, data, tokenFileMode); err != nil {
		return fmt.Errorf("writing token cache: %w", err)
	}
	return nil
}

func oauthConfig(cfg Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:   cfg.AuthorizeURL,
			TokenURL:  cfg.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthorizationRequired reports whether a PIN exchange is needed before
// the API can be used.
func (s *Session) AuthorizationRequired() bool {
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	return s.token == nil || s.token.AccessToken == ""
}

// AuthorizeURL returns the page where the account owner grants access
// and receives the PIN.
func (s *Session) AuthorizeURL() string {
	return s.oauth.AuthCodeURL(uuid.NewString())
}

// RequestToken exchanges a PIN for an access token and caches it.
func (s *Session) RequestToken(ctx context.Context, pin string) error {
	if pin == "" {
		return fmt.Errorf("%w: empty pin", ErrAuthorizationRequired)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
	tok, err := s.oauth.Exchange(ctx, pin)
	if err != nil {
		return fmt.Errorf("%w: exchanging pin: %w", ErrAuthorizationRequired, err)
	}
	if err := saveToken(s.cfg.TokenCacheFile, tok); err != nil {
		return err
	}

	s.tokenMu.Lock()
	s.token = tok
	s.tokenMu.Unlock()
	return nil
}

func (s *Session) accessToken() (string, error) {
	s.tokenMu.RLock()
	defer s.tokenMu.RUnlock()
	if s.token == nil || s.token.AccessToken == "" {
		return "", ErrAuthorizationRequired
	}
	return s.token.AccessToken, nil
}
