// Package auth acquires and caches OAuth access tokens for the semantic
// model platform.
package auth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"semasync/logger"
)

// expiryMargin keeps a token from being handed out when it is about to
// expire mid-request.
const expiryMargin = 300 // seconds

type cachedToken struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
	CachedAt    string `json:"cached_at"`
}

// TokenCache stores access tokens keyed by client identity, persisted to a
// single owner-readable file. All access serializes through one mutex.
type TokenCache struct {
	mu     sync.Mutex
	path   string
	tokens map[string]cachedToken
	log    *logger.Logger
}

// NewTokenCache loads the cache file at path if it exists. An unreadable
// or corrupt cache file is logged and treated as empty. An empty path
// disables persistence.
func NewTokenCache(path string, log *logger.Logger) *TokenCache {
	if log == nil {
		log = logger.Nop()
	}
	c := &TokenCache{
		path:   path,
		tokens: make(map[string]cachedToken),
		log:    log,
	}
	c.load()
	return c
}

func (c *TokenCache) load() {
	if c.path == "" {
		return
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("failed to load token cache", "path", c.path, "error", err)
		}
		return
	}
	if err := json.Unmarshal(data, &c.tokens); err != nil {
		c.log.Warn("discarding corrupt token cache", "path", c.path, "error", err)
		c.tokens = make(map[string]cachedToken)
	}
}

// save must be called with the mutex held.
func (c *TokenCache) save() {
	if c.path == "" {
		return
	}
	data, err := json.Marshal(c.tokens)
	if err != nil {
		c.log.Warn("failed to serialize token cache", "error", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		c.log.Warn("failed to create token cache directory", "error", err)
		return
	}
	// Owner-only permissions, the file holds live credentials.
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		c.log.Warn("failed to save token cache", "path", c.path, "error", err)
	}
}

// Get returns the cached token for key if it is valid for at least the
// expiry margin. Expired entries are evicted on access.
func (c *TokenCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tok, ok := c.tokens[key]
	if !ok {
		return "", false
	}
	if time.Now().Unix()+expiryMargin > tok.ExpiresAt {
		c.log.Debug("cached token expired or expiring soon", "key", key)
		delete(c.tokens, key)
		c.save()
		return "", false
	}
	return tok.AccessToken, true
}

// Set stores a token with its lifetime in seconds.
func (c *TokenCache) Set(key, accessToken string, expiresIn int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[key] = cachedToken{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresAt:   time.Now().Unix() + int64(expiresIn),
		CachedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	c.save()
	c.log.Debug("token cached", "key", key, "expires_in", expiresIn)
}

// Clear removes the token for key, or every token when key is empty.
func (c *TokenCache) Clear(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key == "" {
		c.tokens = make(map[string]cachedToken)
	} else {
		delete(c.tokens, key)
	}
	c.save()
}
