package firebase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/build1/unityconfig/internal/log"
)

const (
	_fetchedKey     = "entries"
	_defaultTimeout = 60 * time.Second
	_maxBody        = 4 << 20
)

// RESTConfig identifies the Firebase app fetching remote config.
type RESTConfig struct {
	Endpoint  string
	ProjectID string
	APIKey    string
	AppID     string
	// InstanceID identifies this installation. Empty generates one.
	InstanceID string
	// Timeout is the default fetch timeout.
	Timeout time.Duration
}

// FetchRequest is the body of a fetch call.
type FetchRequest struct {
	AppInstanceID string `json:"appInstanceId"`
	AppID         string `json:"appId"`
	SDKVersion    string `json:"sdkVersion,omitempty"`
}

// FetchResponse is the body of a successful fetch.
type FetchResponse struct {
	Entries         map[string]string `json:"entries"`
	State           string            `json:"state"`
	TemplateVersion string            `json:"templateVersion"`
}

// RESTClient fetches remote config over the Firebase REST endpoint.
type RESTClient struct {
	hc  *http.Client
	cfg RESTConfig

	mu       sync.Mutex
	settings ConfigSettings
	fetched  *ttlcache.Cache[string, map[string]string]
	active   map[string]string
}

var _ Client = (*RESTClient)(nil)

// NewREST returns a client for cfg. hc may be nil.
func NewREST(cfg RESTConfig, hc *http.Client) *RESTClient {
	if hc == nil {
		hc = &http.Client{}
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = _defaultTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &RESTClient{
		hc:  hc,
		cfg: cfg,
		settings: ConfigSettings{
			MinimumFetchInterval: DefaultMinimumFetchInterval,
		},
		fetched: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, map[string]string](),
		),
		active: map[string]string{},
	}
}

// SetConfigSettings implements Client.
func (c *RESTClient) SetConfigSettings(_ context.Context, s ConfigSettings) error {
	if s.FetchTimeout < 0 || s.MinimumFetchInterval < 0 {
		return newError(CodeUnknown, nil, "negative fetch settings %+v", s)
	}
	if c.cfg.ProjectID == "" || c.cfg.APIKey == "" || c.cfg.AppID == "" {
		return newError(CodeNotConfigured, nil, "project id, api key and app id are required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.MinimumFetchInterval < c.settings.MinimumFetchInterval {
		// A shorter window must not keep serving an entry cached under
		// the longer one.
		c.fetched.DeleteAll()
	}
	c.settings = s
	return nil
}

// FetchAndActivate implements Client. Values fetched within the minimum
// fetch interval are reactivated without a network call.
func (c *RESTClient) FetchAndActivate(ctx context.Context) (bool, error) {
	c.mu.Lock()
	s := c.settings
	c.mu.Unlock()

	if s.MinimumFetchInterval > 0 {
		if item := c.fetched.Get(_fetchedKey); item != nil {
			log.Debug("remote: reusing values inside minimum fetch interval")
			return c.activate(item.Value()), nil
		}
	}

	timeout := c.cfg.Timeout
	if s.FetchTimeout > 0 {
		timeout = s.FetchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries, err := c.fetch(ctx)
	if err != nil {
		return false, err
	}
	if s.MinimumFetchInterval > 0 {
		c.fetched.Set(_fetchedKey, entries, s.MinimumFetchInterval)
	}
	return c.activate(entries), nil
}

// AllValues implements Client.
func (c *RESTClient) AllValues() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.active)
}

func (c *RESTClient) activate(entries map[string]string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if maps.Equal(c.active, entries) {
		return false
	}
	c.active = maps.Clone(entries)
	return true
}

func (c *RESTClient) fetchURL() string {
	return fmt.Sprintf("%s/v1/projects/%s/namespaces/firebase:fetch?key=%s",
		c.cfg.Endpoint, url.PathEscape(c.cfg.ProjectID), url.QueryEscape(c.cfg.APIKey))
}

func (c *RESTClient) fetch(ctx context.Context) (map[string]string, error) {
	body, err := json.Marshal(FetchRequest{
		AppInstanceID: c.cfg.InstanceID,
		AppID:         c.cfg.AppID,
	})
	if err != nil {
		return nil, newError(CodeUnknown, err, "encoding fetch request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.fetchURL(), bytes.NewReader(body))
	if err != nil {
		return nil, newError(CodeUnknown, err, "creating fetch request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, newError(CodeTimeout, err, "fetch timed out")
		}
		return nil, newError(CodeNetwork, err, "fetch failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, _maxBody+1))
	if err != nil {
		return nil, newError(CodeNetwork, err, "reading fetch response")
	}
	if len(raw) > _maxBody {
		return nil, newError(CodeInvalidResponse, nil, "fetch response too large: over %d bytes", _maxBody)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, raw)
	}

	var out FetchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, newError(CodeInvalidResponse, err, "decoding fetch response")
	}
	if out.Entries == nil {
		out.Entries = map[string]string{}
	}
	log.Debug("remote: fetched values", "state", out.State, "template", out.TemplateVersion, "entries", len(out.Entries))
	return out.Entries, nil
}

func statusError(status int, body []byte) *Error {
	msg := fmt.Sprintf("status %d: %s", status, strings.TrimSpace(string(body)))
	switch {
	case status == http.StatusTooManyRequests:
		return newError(CodeThrottled, nil, "%s", msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return newError(CodeUnauthorized, nil, "%s", msg)
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return newError(CodeTimeout, nil, "%s", msg)
	case status >= 500:
		return newError(CodeNetwork, nil, "%s", msg)
	default:
		return newError(CodeUnknown, nil, "%s", msg)
	}
}
