package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	selerrors "github.com/samanhappy/selectly/pkg/errors"
	"github.com/samanhappy/selectly/pkg/logging"
)

// ErrSignInPending indicates the user has not completed sign-in yet.
var ErrSignInPending = errors.New("auth: sign-in pending")

// tokenKey is the persistence key for the stored access token.
const tokenKey = "cloudAccessToken"

// Store persists the token across processes; the settings table satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// TokenSource holds the externally issued cloud access token. The token is
// a JWT whose expiry we read without verifying the signature; verification
// belongs to the cloud endpoint, not this client. When a Store is supplied,
// tokens survive the process: SetToken writes through and Load reads the
// last stored token back.
type TokenSource struct {
	endpoint   string
	store      Store
	httpClient *http.Client
	logger     *logging.Logger

	mu      sync.RWMutex
	token   string
	expires time.Time
}

// NewTokenSource creates a token source polling the given session endpoint.
// A nil store keeps the token in memory only.
func NewTokenSource(endpoint string, store Store, logger *logging.Logger) *TokenSource {
	if logger == nil {
		logger = logging.Discard()
	}
	return &TokenSource{
		endpoint:   endpoint,
		store:      store,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Load restores the persisted token, if any. A token that no longer parses
// or has expired is ignored; the next sign-in or poll replaces it.
func (t *TokenSource) Load(ctx context.Context) {
	if t.store == nil {
		return
	}
	raw, ok, err := t.store.Get(ctx, tokenKey)
	if err != nil {
		t.logger.Warn(logging.CategoryAuth, "token_load_failed", err.Error(), nil)
		return
	}
	if !ok || len(raw) == 0 {
		return
	}
	if err := t.install(string(raw)); err != nil {
		return
	}
	if t.Token() == "" {
		// Stored token already expired; drop it.
		_ = t.store.Delete(ctx, tokenKey)
	}
}

// Token returns the current access token, or an empty string when no valid
// token is held.
func (t *TokenSource) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.token == "" {
		return ""
	}
	if !t.expires.IsZero() && time.Now().After(t.expires) {
		return ""
	}
	return t.token
}

// SetToken installs a raw token, extracting its expiry claim when the token
// parses as a JWT. Opaque tokens are accepted without an expiry. The token
// is written through to the store so other processes pick it up.
func (t *TokenSource) SetToken(ctx context.Context, raw string) error {
	if err := t.install(raw); err != nil {
		return err
	}
	if t.store != nil {
		if err := t.store.Set(ctx, tokenKey, []byte(raw)); err != nil {
			t.logger.Warn(logging.CategoryAuth, "token_persist_failed", err.Error(), nil)
		}
	}
	return nil
}

func (t *TokenSource) install(raw string) error {
	if raw == "" {
		return selerrors.New(selerrors.ErrCodeAuthToken, "empty access token")
	}

	var expires time.Time
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			expires = exp.Time
		}
	}

	t.mu.Lock()
	t.token = raw
	t.expires = expires
	t.mu.Unlock()
	return nil
}

// Clear drops the held token, stored copy included.
func (t *TokenSource) Clear(ctx context.Context) {
	t.mu.Lock()
	t.token = ""
	t.expires = time.Time{}
	t.mu.Unlock()
	if t.store != nil {
		_ = t.store.Delete(ctx, tokenKey)
	}
}

type sessionResponse struct {
	Token string `json:"token"`
}

// fetch asks the session endpoint for the current token once.
func (t *TokenSource) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var session sessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
			return fmt.Errorf("decoding session: %w", err)
		}
		if session.Token == "" {
			return ErrSignInPending
		}
		return t.SetToken(ctx, session.Token)
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusAccepted, resp.StatusCode == http.StatusUnauthorized:
		return ErrSignInPending
	default:
		return selerrors.Newf(selerrors.ErrCodeAuthToken, "session endpoint returned %s", resp.Status)
	}
}

// Poll polls the session endpoint with capped exponential backoff until a
// token is obtained or ctx is cancelled.
func (t *TokenSource) Poll(ctx context.Context) error {
	const (
		baseDelay = 2 * time.Second
		maxDelay  = 30 * time.Second
	)
	delay := baseDelay
	for {
		err := t.fetch(ctx)
		if err == nil {
			t.logger.Info(logging.CategoryAuth, "token_acquired", "cloud sign-in complete", nil)
			return nil
		}
		if !errors.Is(err, ErrSignInPending) {
			t.logger.Warn(logging.CategoryAuth, "poll_failed", err.Error(), nil)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
