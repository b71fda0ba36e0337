package clients

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
)

// ServiceAccountConfig identifies the service account used for outbound calls.
type ServiceAccountConfig struct {
	ServerURL    string
	Realm        string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
}

// TokenURL is the realm's OpenID Connect token endpoint.
func (c ServiceAccountConfig) TokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", strings.TrimRight(c.ServerURL, "/"), c.Realm)
}

// passwordGrantSource fetches a fresh token with the resource owner password grant.
type passwordGrantSource struct {
	ctx      context.Context
	conf     *oauth2.Config
	username string
	password string
}

func (s *passwordGrantSource) Token() (*oauth2.Token, error) {
	tok, err := s.conf.PasswordCredentialsToken(s.ctx, s.username, s.password)
	if err != nil {
		return nil, fmt.Errorf("service account token: %w", err)
	}
	return tok, nil
}

// NewServiceAccountTokenSource returns a token source that reuses a token until it expires.
// ctx carries the HTTP client used for token requests and should outlive the source.
func NewServiceAccountTokenSource(ctx context.Context, cfg ServiceAccountConfig) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cfg.TokenURL(),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	return oauth2.ReuseTokenSource(nil, &passwordGrantSource{
		ctx:      ctx,
		conf:     conf,
		username: cfg.Username,
		password: cfg.Password,
	})
}
