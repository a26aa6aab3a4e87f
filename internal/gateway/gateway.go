// Package gateway performs the login, verify and refresh calls against the
// auth backend and translates failures into the session error taxonomy.
// It never retries; retry policy belongs to the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"go-academic-portal/internal/model"
	"go-academic-portal/pkg/apierror"
)

const (
	loginPath   = "/api/auth/login"
	verifyPath  = "/api/auth/verify"
	refreshPath = "/api/auth/refresh"

	apiKeyHeader = "x-api-key"
	maxBodyBytes = 1 << 20
)

type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	validate *validator.Validate
	logger   *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Client) {
		g.http = c
	}
}

func WithAPIKey(key string) Option {
	return func(g *Client) {
		g.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout sets the request timeout on a copy of the current client, so
// a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(g *Client) {
		if d > 0 {
			c := *g.http
			c.Timeout = d
			g.http = &c
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Client) {
		g.logger = logger
	}
}

func New(baseURL string, opts ...Option) *Client {
	g := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:     &http.Client{Timeout: 10 * time.Second},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Client) Login(ctx context.Context, email string, password string) (model.LoginResult, error) {
	payload := model.LoginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := g.validate.Struct(payload); err != nil {
		return model.LoginResult{}, apierror.Wrap(model.ErrInvalidCredentials,
			"INVALID_INPUT", "email and password are required", http.StatusBadRequest, validationDetails(err))
	}

	status, body, err := g.do(ctx, http.MethodPost, loginPath, "", payload)
	if err != nil {
		return model.LoginResult{}, err
	}

	if !isSuccess(status) {
		message := errorMessage(body, "invalid credentials")
		if transientStatus(status) {
			return model.LoginResult{}, apierror.New("UPSTREAM_ERROR", message, "", status).WithKind(model.ErrNetwork)
		}
		return model.LoginResult{}, apierror.New("INVALID_CREDENTIALS", message, "", status).WithKind(model.ErrInvalidCredentials)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.LoginResult{}, apierror.Wrap(model.ErrNetwork, "BAD_RESPONSE", "malformed login response", status, err)
	}
	if resp.accessToken() == "" {
		return model.LoginResult{}, apierror.New("BAD_RESPONSE", "login response has no token", "", status).WithKind(model.ErrNetwork)
	}

	u := resp.user()
	if u == nil || u.empty() {
		return model.LoginResult{}, apierror.New("BAD_RESPONSE", "login response has no user", "", status).WithKind(model.ErrNetwork)
	}
	user := normalizeUser(*u)
	if len(user.Roles) == 0 {
		return model.LoginResult{}, apierror.New("BAD_RESPONSE", "login response user has no roles", "", status).WithKind(model.ErrNetwork)
	}

	result := model.LoginResult{
		AccessToken:  resp.accessToken(),
		RefreshToken: resp.RefreshToken,
		Duration:     resp.duration(),
		User:         user,
	}

	g.logger.Debug("login succeeded", "user_id", result.User.ID, "roles", len(result.User.Roles), "duration", result.Duration)
	return result, nil
}

func (g *Client) VerifyToken(ctx context.Context, accessToken string) (model.UserProfile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return model.UserProfile{}, apierror.New("NO_TOKEN", "no access token", "", 0).WithKind(model.ErrTokenInvalid)
	}

	status, body, err := g.do(ctx, http.MethodGet, verifyPath, accessToken, nil)
	if err != nil {
		return model.UserProfile{}, err
	}

	if !isSuccess(status) {
		return model.UserProfile{}, apierror.New("TOKEN_INVALID", errorMessage(body, "token invalid"), "", status).WithKind(model.ErrTokenInvalid)
	}

	var envelope verifyEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return model.UserProfile{}, apierror.Wrap(model.ErrNetwork, "BAD_RESPONSE", "malformed verify response", status, err)
	}

	user := envelope.User
	if user == nil {
		user = envelope.Usuario
	}
	if user == nil {
		var bare wireUser
		if err := json.Unmarshal(body, &bare); err != nil {
			return model.UserProfile{}, apierror.Wrap(model.ErrNetwork, "BAD_RESPONSE", "malformed verify response", status, err)
		}
		user = &bare
	}
	if user.empty() {
		return model.UserProfile{}, apierror.New("BAD_RESPONSE", "verify response has no user", "", status).WithKind(model.ErrNetwork)
	}

	profile := normalizeUser(*user)
	if len(profile.Roles) == 0 {
		return model.UserProfile{}, apierror.New("BAD_RESPONSE", "verify response user has no roles", "", status).WithKind(model.ErrNetwork)
	}

	return profile, nil
}

func (g *Client) RefreshToken(ctx context.Context, refreshToken string) (model.RefreshResult, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.RefreshResult{}, apierror.New("NO_REFRESH_TOKEN", "no refresh token available", "", http.StatusUnauthorized).WithKind(model.ErrRefreshInvalid)
	}

	status, body, err := g.do(ctx, http.MethodPost, refreshPath, "", model.RefreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return model.RefreshResult{}, err
	}

	if !isSuccess(status) {
		message := errorMessage(body, "refresh failed")
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return model.RefreshResult{}, apierror.New("REFRESH_INVALID", message, "", status).WithKind(model.ErrRefreshInvalid)
		default:
			return model.RefreshResult{}, apierror.New("UPSTREAM_ERROR", message, "", status).WithKind(model.ErrNetwork)
		}
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.RefreshResult{}, apierror.Wrap(model.ErrNetwork, "BAD_RESPONSE", "malformed refresh response", status, err)
	}
	if resp.accessToken() == "" {
		return model.RefreshResult{}, apierror.New("BAD_RESPONSE", "refresh response has no token", "", status).WithKind(model.ErrNetwork)
	}

	return model.RefreshResult{
		AccessToken:  resp.accessToken(),
		RefreshToken: resp.RefreshToken,
		Duration:     resp.duration(),
	}, nil
}

// do sends one request and returns the status and body. Transport failures
// come back as ErrNetwork.
func (g *Client) do(ctx context.Context, method string, path string, bearer string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set(apiKeyHeader, g.apiKey)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	started := time.Now()
	resp, err := g.http.Do(req)
	if err != nil {
		g.logger.Warn("auth request failed", "method", method, "path", path, "error", err)
		return 0, nil, apierror.Wrap(model.ErrNetwork, "NETWORK_ERROR", "auth backend unreachable", 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, apierror.Wrap(model.ErrNetwork, "NETWORK_ERROR", "reading auth response failed", resp.StatusCode, err)
	}

	g.logger.Debug("auth request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return resp.StatusCode, body, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// transientStatus marks failures that say nothing about the credentials:
// server errors, timeouts and throttling.
func transientStatus(status int) bool {
	return status >= http.StatusInternalServerError ||
		status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests
}

func errorMessage(body []byte, fallback string) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg := strings.TrimSpace(parsed.text()); msg != "" {
			return msg
		}
	}
	return fallback
}

func validationDetails(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field())+":"+fe.Tag())
	}
	return errors.New(strings.Join(fields, ", "))
}
