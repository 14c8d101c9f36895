package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/build1/unityconfig/pkg/api"
)

func TestStatus(t *testing.T) {
	srv := api.New(api.SourceFunc(func(context.Context) (map[string]string, error) {
		return map[string]string{"config": "{}"}, nil
	}), api.Options{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/projects/p/namespaces/firebase:fetch", "application/json",
		strings.NewReader(`{"appInstanceId":"i"}`))
	require.NoError(t, err)
	resp.Body.Close()

	st, err := New(strings.TrimPrefix(ts.URL, "http://")).Status(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Fetches)
}

func TestStatusError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := New(ts.URL + "/").Status(context.Background())

	assert.ErrorContains(t, err, "404")
}
