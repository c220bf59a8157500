package accounting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const tokenCacheKey = "accounting:access_token"

// TokenSource exchanges the long-lived refresh token for short-lived access tokens.
// The Redis copy only saves round trips; a cache failure falls back to refreshing.
type TokenSource struct {
	authURL      string
	clientID     string
	clientSecret string
	refreshToken string
	httpClient   *http.Client
	redis        *redis.Client
	logger       *slog.Logger
	group        singleflight.Group
}

// NewTokenSource constructs a token source. rdb may be nil.
func NewTokenSource(cfg Config, httpClient *http.Client, rdb *redis.Client, logger *slog.Logger) *TokenSource {
	return &TokenSource{
		authURL:      strings.TrimRight(cfg.AuthURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		refreshToken: cfg.RefreshToken,
		httpClient:   httpClient,
		redis:        rdb,
		logger:       logger,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error"`
}

// Token returns a cached access token or refreshes one. Concurrent refreshes collapse into one call.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	if s.redis != nil {
		tok, err := s.redis.Get(ctx, tokenCacheKey).Result()
		if err == nil && tok != "" {
			return tok, nil
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			s.logger.Warn("accounting token cache read failed", slog.Any("error", err))
		}
	}

	ch := s.group.DoChan("refresh", func() (interface{}, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token after the API rejected it.
func (s *TokenSource) Invalidate(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, tokenCacheKey).Err(); err != nil {
		s.logger.Warn("accounting token cache delete failed", slog.Any("error", err))
	}
}

func (s *TokenSource) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", s.refreshToken)
	form.Set("client_id", s.clientID)
	form.Set("client_secret", s.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authURL+"/oauth/v2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token refresh: %v", ErrRemote, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return "", &APIError{Status: resp.StatusCode, Message: "token refresh rejected"}
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode token: %v", ErrRemote, err)
	}
	if body.AccessToken == "" {
		return "", &APIError{Status: resp.StatusCode, Message: "token refresh: " + body.Error}
	}

	if s.redis != nil {
		ttl := time.Duration(body.ExpiresIn)*time.Second - time.Minute
		if ttl > 0 {
			if err := s.redis.Set(ctx, tokenCacheKey, body.AccessToken, ttl).Err(); err != nil {
				s.logger.Warn("accounting token cache write failed", slog.Any("error", err))
			}
		}
	}
	return body.AccessToken, nil
}
