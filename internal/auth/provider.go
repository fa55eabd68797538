package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
)

// ErrNoEmail is returned when the identity provider does not share an email.
var ErrNoEmail = errors.New("identity provider returned no email")

// Identity is the subset of the provider's userinfo we keep.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Provider signs users in with an OAuth2 authorization-code flow and reads
// their profile from the provider's userinfo endpoint.
type Provider struct {
	OAuth       *oauth2.Config
	UserInfoURL string
}

// ProviderConfig is what NewProvider needs from configuration.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	Scopes       []string
	RedirectURL  string
}

func NewProvider(cfg ProviderConfig) *Provider {
	return &Provider{
		OAuth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		UserInfoURL: cfg.UserInfoURL,
	}
}

// AuthCodeURL is where the browser is sent to sign in.
func (p *Provider) AuthCodeURL(state string) string {
	return p.OAuth.AuthCodeURL(state)
}

// Identify exchanges the callback code and fetches the signed-in identity.
func (p *Provider) Identify(ctx context.Context, code string) (Identity, error) {
	if code == "" {
		return Identity{}, errors.New("missing authorization code")
	}
	tok, err := p.OAuth.Exchange(ctx, code)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.OAuth.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Identity{}, fmt.Errorf("userinfo status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode userinfo: %w", err)
	}
	id.Email = strings.ToLower(strings.TrimSpace(id.Email))
	if id.Email == "" {
		return Identity{}, ErrNoEmail
	}
	return id, nil
}
