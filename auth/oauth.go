package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"semasync/config"
	"semasync/errs"
	"semasync/logger"
)

const providerName = "Microsoft Entra ID"

// CredentialProvider hands out bearer tokens for authenticated platform
// calls. forceRefresh bypasses any cached token.
type CredentialProvider interface {
	GetToken(ctx context.Context, forceRefresh bool) (string, error)
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// OAuthClient implements the client-credentials flow against the tenant's
// token endpoint. Token acquisition serializes through one mutex via the
// shared TokenCache.
type OAuthClient struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	cacheKey     string
	cache        *TokenCache
	httpClient   *http.Client
	log          *logger.Logger
}

// NewOAuthClient builds a client from config. Passing a nil cache creates
// one at the configured cache path.
func NewOAuthClient(cfg *config.Config, cache *TokenCache, log *logger.Logger) *OAuthClient {
	if log == nil {
		log = logger.Nop()
	}
	if cache == nil {
		cache = NewTokenCache(cfg.TokenCachePath, log)
	}
	return &OAuthClient{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		scope:        cfg.TokenScope,
		cacheKey:     "powerbi_" + cfg.ClientID,
		cache:        cache,
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		log:          log,
	}
}

// GetToken returns a valid access token, acquiring a fresh one when the
// cache misses or forceRefresh is set.
func (c *OAuthClient) GetToken(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if token, ok := c.cache.Get(c.cacheKey); ok {
			c.log.Debug("using cached access token")
			return token, nil
		}
	}

	c.log.Info("acquiring new access token", "token_url", c.tokenURL)
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {c.scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &errs.AuthenticationError{Provider: providerName, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &errs.AuthenticationError{Provider: providerName, Err: err}
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &errs.AuthenticationError{
			Provider: providerName,
			Err:      fmt.Errorf("decoding token response: %w", err),
		}
	}
	if resp.StatusCode != http.StatusOK || tr.Error != "" || tr.AccessToken == "" {
		return "", &errs.AuthenticationError{
			Provider: providerName,
			Err:      fmt.Errorf("token acquisition failed (%d): %s %s", resp.StatusCode, tr.Error, tr.ErrorDescription),
		}
	}

	expiresIn := tr.ExpiresIn
	if expiresIn == 0 {
		expiresIn = 3600
	}
	c.cache.Set(c.cacheKey, tr.AccessToken, expiresIn)
	c.log.Info("acquired access token", "expires_in", expiresIn)
	return tr.AccessToken, nil
}

// AuthorizationHeader returns the Bearer header value for a valid token.
func (c *OAuthClient) AuthorizationHeader(ctx context.Context, forceRefresh bool) (string, error) {
	token, err := c.GetToken(ctx, forceRefresh)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

// ValidateCredentials forces a fresh acquisition so bad credentials fail
// fast instead of surfacing mid-sync.
func (c *OAuthClient) ValidateCredentials(ctx context.Context) error {
	_, err := c.GetToken(ctx, true)
	return err
}

// ClearCache drops this client's cached token.
func (c *OAuthClient) ClearCache() {
	c.cache.Clear(c.cacheKey)
	c.log.Info("token cache cleared")
}
