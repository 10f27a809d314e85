package osuapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/ctxutil"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/envutil"
	"github.com/pandemonium-osu/pandemonium-backend/internal/platform/logger"
)

const (
	defaultBaseURL      = "https://osu.ppy.sh"
	tokenRefreshLeeway  = 30 * time.Second
	maxErrorBodyBytes   = 1024
	bestScoresPerPage   = 200
	recentScoresPerPage = 100
)

// APIError carries the failed operation plus the upstream status, and marks
// timeouts so callers can treat them as transient.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
	Timeout    bool
	Cause      error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString("osuapi ")
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " status=%d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Cause }

// IsTimeout reports whether err is a timeout-classified upstream failure.
func IsTimeout(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Timeout
}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	BaseURL      string
}

func ResolveConfigFromEnv() Config {
	return Config{
		ClientID:     envutil.Str("OSU_API_CLIENT_ID", ""),
		ClientSecret: envutil.Str("OSU_API_CLIENT_SECRET", ""),
		RedirectURL:  envutil.Str("OSU_API_REDIRECT_URL", ""),
		BaseURL:      envutil.Str("OSU_API_BASE_URL", defaultBaseURL),
	}
}

// Client is the upstream surface consumed by workers and the oauth handler.
type Client interface {
	GetBeatmapset(ctx context.Context, id int64) (*Beatmapset, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserScores(ctx context.Context, userID int64, scoreType, mode string) ([]Score, error)
	GetUserFavourites(ctx context.Context, userID int64) ([]FavouriteBeatmapset, error)

	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	GetOwnUser(ctx context.Context, accessToken string) (*User, error)
}

type client struct {
	log     *logger.Logger
	cfg     Config
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token *Token
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("missing OSU_API_CLIENT_ID / OSU_API_CLIENT_SECRET")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return &client{
		log:     log.With("service", "OsuAPIClient"),
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

func (c *client) GetBeatmapset(ctx context.Context, id int64) (*Beatmapset, error) {
	var out Beatmapset
	path := "/api/v2/beatmapsets/" + strconv.FormatInt(id, 10)
	if err := c.getJSON(ctx, "get_beatmapset", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) GetUser(ctx context.Context, id int64) (*User, error) {
	var out User
	path := "/api/v2/users/" + strconv.FormatInt(id, 10)
	if err := c.getJSON(ctx, "get_user", path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUserScores fetches one page of the user's scores. scoreType is "best"
// or "recent"; mode is one of the four ruleset names.
func (c *client) GetUserScores(ctx context.Context, userID int64, scoreType, mode string) ([]Score, error) {
	limit := bestScoresPerPage
	if scoreType == "recent" {
		limit = recentScoresPerPage
	}

	query := url.Values{}
	query.Set("mode", mode)
	query.Set("limit", strconv.Itoa(limit))

	var out []Score
	path := fmt.Sprintf("/api/v2/users/%d/scores/%s", userID, scoreType)
	if err := c.getJSON(ctx, "get_user_scores", path, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) GetUserFavourites(ctx context.Context, userID int64) ([]FavouriteBeatmapset, error) {
	query := url.Values{}
	query.Set("limit", "100")

	var out []FavouriteBeatmapset
	path := fmt.Sprintf("/api/v2/users/%d/beatmapsets/favourite", userID)
	if err := c.getJSON(ctx, "get_user_favourites", path, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) AuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.cfg.ClientID)
	query.Set("redirect_uri", c.cfg.RedirectURL)
	query.Set("scope", "public identify")
	query.Set("state", state)
	return c.baseURL + "/oauth/authorize?" + query.Encode()
}

func (c *client) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	const op = "exchange_code"

	body := map[string]any{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"code":          code,
		"grant_type":    "authorization_code",
		"redirect_uri":  c.cfg.RedirectURL,
	}

	var token Token
	if err := c.doJSON(ctx, op, http.MethodPost, "/oauth/token", "", body, &token); err != nil {
		return nil, err
	}
	token.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return &token, nil
}

func (c *client) GetOwnUser(ctx context.Context, accessToken string) (*User, error) {
	var out User
	if err := c.doJSON(ctx, "get_own_user", http.MethodGet, "/api/v2/me", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// appToken returns the cached client-credentials token, fetching a fresh
// one when missing or close to expiry.
func (c *client) appToken(ctx context.Context) (string, error) {
	const op = "app_token"

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && time.Until(c.token.expiresAt) > tokenRefreshLeeway {
		return c.token.AccessToken, nil
	}

	body := map[string]any{
		"client_id":     c.cfg.ClientID,
		"client_secret": c.cfg.ClientSecret,
		"grant_type":    "client_credentials",
		"scope":         "public",
	}

	var token Token
	if err := c.doJSON(ctx, op, http.MethodPost, "/oauth/token", "", body, &token); err != nil {
		return "", err
	}
	token.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.token = &token

	c.log.Debug("refreshed upstream app token", "expires_in", token.ExpiresIn)
	return token.AccessToken, nil
}

func (c *client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	token, err := c.appToken(ctx)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	return c.doJSON(ctx, op, http.MethodGet, path, token, nil, out)
}

func (c *client) doJSON(ctx context.Context, op, method, path, bearer string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return &APIError{Op: op, Message: "encode request failed", Cause: err}
		}
		body = strings.NewReader(string(raw))
	}

	req, err := http.NewRequestWithContext(ctxutil.Ensure(ctx), method, c.baseURL+path, body)
	if err != nil {
		return &APIError{Op: op, Message: "build request failed", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyCallError(op, err)
	}
	defer resp.Body.Close()

	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if readErr != nil {
		return &APIError{Op: op, Message: "read response failed", Cause: readErr}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Message:    truncateBody(raw),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Op: op, Message: "decode response failed", Cause: err}
	}
	return nil
}

func classifyCallError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Op: op, Message: "upstream request timed out", Timeout: true, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &APIError{Op: op, Message: "upstream request timed out", Timeout: true, Cause: err}
	}
	return &APIError{Op: op, Message: "upstream request failed", Cause: err}
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
