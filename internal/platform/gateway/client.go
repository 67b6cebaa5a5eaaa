package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/mediajobs/internal/domain"
)

// ErrTokenExpired is returned when the issued token is already expired.
var ErrTokenExpired = errors.New("issued token is already expired")

// Config configures the token exchange.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	Timeout      time.Duration
}

// Client exchanges client credentials for access tokens.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a Client.
func NewClient(config Config, logger *slog.Logger) *Client {
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With("component", "gateway_client"),
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Token requests a fresh access token. Failures wrap domain.ErrInfrastructure.
func (c *Client) Token(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	if c.config.Scope != "" {
		form.Set("scope", c.config.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: failed to build token request: %v", domain.ErrInfrastructure, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token request failed: %v", domain.ErrInfrastructure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: token endpoint returned status %d: %s",
			domain.ErrInfrastructure, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: malformed token response: %v", domain.ErrInfrastructure, err)
	}
	if parsed.AccessToken == "" {
		return "", fmt.Errorf("%w: token response has no access_token", domain.ErrInfrastructure)
	}

	if err := c.checkExpiry(parsed.AccessToken); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInfrastructure, err)
	}

	c.logger.DebugContext(ctx, "access token issued", "expires_in", parsed.ExpiresIn)
	return parsed.AccessToken, nil
}

// checkExpiry rejects JWT access tokens whose exp claim has passed. Opaque
// tokens are accepted as is; the signature is the resource server's concern.
func (c *Client) checkExpiry(token string) error {
	if strings.Count(token, ".") != 2 {
		return nil
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		c.logger.Debug("access token is not a parseable JWT", "error", err)
		return nil
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !exp.After(c.now()) {
		return ErrTokenExpired
	}
	return nil
}
