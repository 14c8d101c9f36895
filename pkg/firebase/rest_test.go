package firebase

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"
	"go.uber.org/atomic"
)

type RESTTestSuite struct {
	suite.Suite
	srv      *httptest.Server
	hits     atomic.Int64
	status   int
	body     string
	delay    time.Duration
	lastBody FetchRequest
	lastPath string
	lastKey  string
}

func (s *RESTTestSuite) SetupTest() {
	s.hits.Store(0)
	s.status = http.StatusOK
	s.body = `{"entries":{"config":"{\"v\":1}","lives":"3"},"state":"UPDATE","templateVersion":"7"}`
	s.delay = 0
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Inc()
		s.lastPath = r.URL.Path
		s.lastKey = r.URL.Query().Get("key")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &s.lastBody)
		if s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-r.Context().Done():
				return
			}
		}
		w.WriteHeader(s.status)
		_, _ = io.WriteString(w, s.body)
	}))
}

func (s *RESTTestSuite) TearDownTest() {
	s.srv.Close()
}

func (s *RESTTestSuite) client() *RESTClient {
	return NewREST(RESTConfig{
		Endpoint:   s.srv.URL + "/",
		ProjectID:  "game-prod",
		APIKey:     "secret",
		AppID:      "1:2:android:3",
		InstanceID: "install-1",
	}, s.srv.Client())
}

func (s *RESTTestSuite) TestFetchAndActivate() {
	c := s.client()
	ctx := context.Background()

	// Given settings that always refetch
	s.Require().NoError(c.SetConfigSettings(ctx, ConfigSettings{}))

	// When fetching
	changed, err := c.FetchAndActivate(ctx)

	// Then the values become active and the request is well formed
	s.Require().NoError(err)
	s.True(changed)
	s.Equal(map[string]string{"config": `{"v":1}`, "lives": "3"}, c.AllValues())
	s.Equal("/v1/projects/game-prod/namespaces/firebase:fetch", s.lastPath)
	s.Equal("secret", s.lastKey)
	s.Equal("install-1", s.lastBody.AppInstanceID)
	s.Equal("1:2:android:3", s.lastBody.AppID)

	// And an identical second fetch reports no change
	changed, err = c.FetchAndActivate(ctx)
	s.Require().NoError(err)
	s.False(changed)
	s.Equal(int64(2), s.hits.Load())
}

func (s *RESTTestSuite) TestMinimumFetchIntervalReusesValues() {
	c := s.client()
	ctx := context.Background()
	s.Require().NoError(c.SetConfigSettings(ctx, ConfigSettings{MinimumFetchInterval: time.Hour}))

	_, err := c.FetchAndActivate(ctx)
	s.Require().NoError(err)
	_, err = c.FetchAndActivate(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), s.hits.Load())

	// Dropping the interval to zero forces a network fetch again
	s.Require().NoError(c.SetConfigSettings(ctx, ConfigSettings{}))
	_, err = c.FetchAndActivate(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), s.hits.Load())
}

func (s *RESTTestSuite) TestEmptyTemplate() {
	s.body = `{"state":"NO_TEMPLATE"}`
	c := s.client()
	s.Require().NoError(c.SetConfigSettings(context.Background(), ConfigSettings{}))

	_, err := c.FetchAndActivate(context.Background())

	s.Require().NoError(err)
	s.Empty(c.AllValues())
}

func (s *RESTTestSuite) TestErrorCodes() {
	testCases := []struct {
		name   string
		status int
		body   string
		code   Code
	}{
		{name: "throttled", status: http.StatusTooManyRequests, code: CodeThrottled},
		{name: "unauthorized", status: http.StatusForbidden, code: CodeUnauthorized},
		{name: "server error", status: http.StatusServiceUnavailable, code: CodeNetwork},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, code: CodeTimeout},
		{name: "bad request", status: http.StatusBadRequest, code: CodeUnknown},
		{name: "garbage body", status: http.StatusOK, body: "<html>", code: CodeInvalidResponse},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.status = tc.status
			s.body = tc.body
			c := s.client()
			s.Require().NoError(c.SetConfigSettings(context.Background(), ConfigSettings{}))

			_, err := c.FetchAndActivate(context.Background())

			s.Require().Error(err)
			s.Equal(tc.code, CodeOf(err))
		})
	}
}

func (s *RESTTestSuite) TestOversizedResponse() {
	s.body = `{"entries":{"config":"` + strings.Repeat("a", _maxBody) + `"}}`
	c := s.client()
	s.Require().NoError(c.SetConfigSettings(context.Background(), ConfigSettings{}))

	_, err := c.FetchAndActivate(context.Background())

	s.Require().Error(err)
	s.Equal(CodeInvalidResponse, CodeOf(err))
	s.Contains(err.Error(), "too large")
	s.Empty(c.AllValues())
}

func (s *RESTTestSuite) TestFetchTimeout() {
	s.delay = time.Second
	c := s.client()
	s.Require().NoError(c.SetConfigSettings(context.Background(), ConfigSettings{FetchTimeout: 20 * time.Millisecond}))

	_, err := c.FetchAndActivate(context.Background())

	s.Require().Error(err)
	s.Equal(CodeTimeout, CodeOf(err))
}

func (s *RESTTestSuite) TestNotConfigured() {
	c := NewREST(RESTConfig{Endpoint: s.srv.URL}, nil)

	err := c.SetConfigSettings(context.Background(), ConfigSettings{})

	s.Equal(CodeNotConfigured, CodeOf(err))
	s.Zero(s.hits.Load())
}

func (s *RESTTestSuite) TestNegativeSettings() {
	err := s.client().SetConfigSettings(context.Background(), ConfigSettings{FetchTimeout: -time.Second})
	s.Equal(CodeUnknown, CodeOf(err))
}

func TestRESTSuite(t *testing.T) {
	suite.Run(t, new(RESTTestSuite))
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(context.DeadlineExceeded); got != CodeTimeout {
		t.Fatalf("expected timeout, got %s", got)
	}
	if got := CodeOf(errors.New("x")); got != CodeUnknown {
		t.Fatalf("expected unknown, got %s", got)
	}
	err := &Error{Code: CodeThrottled, Message: "slow down"}
	if !strings.Contains(err.Error(), "throttled: slow down") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestMemoryClient(t *testing.T) {
	m := NewMemory(map[string]string{"a": "1"})
	ctx := context.Background()

	if err := m.SetConfigSettings(ctx, ConfigSettings{FetchTimeout: time.Second}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	changed, err := m.FetchAndActivate(ctx)
	if err != nil || !changed {
		t.Fatalf("expected change, got %v %v", changed, err)
	}
	if m.AllValues()["a"] != "1" || m.Fetches() != 1 || m.Settings().FetchTimeout != time.Second {
		t.Fatalf("unexpected state %v", m.AllValues())
	}

	m.FetchErr = &Error{Code: CodeNetwork}
	if _, err := m.FetchAndActivate(ctx); CodeOf(err) != CodeNetwork {
		t.Fatalf("expected network error, got %v", err)
	}
}
