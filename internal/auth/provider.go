package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/brandon/mcp-mailbox/internal/config"
)

// Scopes requested for mailbox access. offline_access yields the refresh token.
var Scopes = []string{
	"https://outlook.office365.com/IMAP.AccessAsUser.All",
	"offline_access",
}

var (
	// ErrNoAccount means the credential cache holds no authorized account
	ErrNoAccount = errors.New("no cached account")
	// ErrTokenRefresh means silent token acquisition failed
	ErrTokenRefresh = errors.New("token refresh failed")
)

// credentialCache is the serialized form persisted through a Store
type credentialCache struct {
	Accounts []cachedAccount `json:"accounts"`
}

type cachedAccount struct {
	Username string        `json:"username"`
	Token    *oauth2.Token `json:"token"`
}

// Provider issues bearer tokens for the mailbox account. It never starts an
// interactive flow: without a usable refresh token it fails.
type Provider struct {
	oauth      *oauth2.Config
	store      Store
	username   string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewProvider creates a credential provider over store
func NewProvider(cfg *config.Config, store Store, logger *logrus.Logger) *Provider {
	base := strings.TrimRight(cfg.OAuth.AuthorityHost, "/") + "/" + cfg.OAuth.TenantID + "/oauth2/v2.0"

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + "/authorize",
				TokenURL:  base + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		store:    store,
		username: cfg.IMAP.User,
		logger:   logger,
	}
}

// SetHTTPClient sets the client used for token endpoint requests
func (p *Provider) SetHTTPClient(c *http.Client) {
	p.httpClient = c
}

func (p *Provider) withClient(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// AccessToken loads the cache, silently refreshes the first account's token
// when needed, persists the cache and returns the bearer string.
func (p *Provider) AccessToken(ctx context.Context) (string, error) {
	cache := p.loadCache()
	if len(cache.Accounts) == 0 || cache.Accounts[0].Token == nil {
		return "", fmt.Errorf("%w: run setup-auth first to authenticate", ErrNoAccount)
	}

	account := cache.Accounts[0]
	token, err := p.oauth.TokenSource(p.withClient(ctx), account.Token).Token()
	if err != nil {
		return "", fmt.Errorf("%w for %s: %w; run setup-auth again", ErrTokenRefresh, account.Username, err)
	}

	if token.AccessToken != account.Token.AccessToken {
		p.logger.WithField("account", account.Username).Debug("Refreshed access token")
	}

	cache.Accounts[0].Token = token
	if err := p.saveCache(cache); err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// AuthorizationURL builds the consent URL for the bootstrap flow
func (p *Provider) AuthorizationURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

// ExchangeCode trades an authorization code for tokens and replaces the cache
// with the resulting account. A consumed code cannot be exchanged twice.
func (p *Provider) ExchangeCode(ctx context.Context, code string) error {
	if code == "" {
		return errors.New("authorization code is empty")
	}

	token, err := p.oauth.Exchange(p.withClient(ctx), code)
	if err != nil {
		return fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	if token.RefreshToken == "" {
		p.logger.Warn("Token response has no refresh token; silent refresh will not work")
	}

	cache := credentialCache{
		Accounts: []cachedAccount{{Username: p.username, Token: token}},
	}
	if err := p.saveCache(cache); err != nil {
		return err
	}

	p.logger.WithField("account", p.username).Info("Authorization code exchanged, token cached")
	return nil
}

// loadCache decodes the stored cache. Missing or corrupt data yields an empty cache.
func (p *Provider) loadCache() credentialCache {
	var cache credentialCache

	data, ok := p.store.Load()
	if !ok {
		return cache
	}
	if err := json.Unmarshal(data, &cache); err != nil {
		p.logger.WithError(err).Warn("Ignoring unreadable token cache")
		return credentialCache{}
	}
	return cache
}

func (p *Provider) saveCache(cache credentialCache) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token cache: %w", err)
	}
	if err := p.store.Save(data); err != nil {
		return fmt.Errorf("failed to persist token cache: %w", err)
	}
	return nil
}
