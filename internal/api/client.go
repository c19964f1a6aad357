// Package api holds the pooled HTTP client shared by every outbound call:
// Gemini smart parse and the Telegram Bot API.
//
// One client means one connection pool; keep-alive connections to the same
// host are reused across parse requests and notifications.
package api

import (
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout applies until Configure is called.
const DefaultTimeout = 30 * time.Second

var (
	mu           sync.RWMutex
	sharedClient = NewHTTPClient(DefaultTimeout)
)

// GetHTTPClient returns the shared HTTP client instance.
func GetHTTPClient() *http.Client {
	mu.RLock()
	defer mu.RUnlock()
	return sharedClient
}

// GetUnboundedHTTPClient returns a client on the shared connection pool
// without the shared Timeout. Callers bound requests through their context.
func GetUnboundedHTTPClient() *http.Client {
	shared := GetHTTPClient()
	return &http.Client{Transport: shared.Transport}
}

// Configure replaces the shared client with one using timeout.
func Configure(timeout time.Duration) {
	SetHTTPClient(NewHTTPClient(timeout))
}

// NewHTTPClient creates a client with connection pooling.
//
// Connection pool configuration:
//   - MaxIdleConns: 100 idle connections across all hosts
//   - MaxIdleConnsPerHost: 10
//   - IdleConnTimeout: 90 seconds
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}

// SetHTTPClient overrides the shared client (useful for testing).
func SetHTTPClient(client *http.Client) {
	mu.Lock()
	defer mu.Unlock()
	sharedClient = client
}
