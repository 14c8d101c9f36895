// Package api serves the remote config fetch endpoint locally. A game or
// the loader pointed at it receives a workspace variant exactly as it would
// arrive from Firebase, either as one JSON parameter or decomposed into one
// parameter per section.
package api

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"slices"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"

	"github.com/build1/unityconfig/internal/buildinfo"
	"github.com/build1/unityconfig/internal/log"
	"github.com/build1/unityconfig/pkg/firebase"
)

const _fetchNamespace = "firebase:fetch"

// StatusResponse represents the server status response.
type StatusResponse struct {
	Fetches int64         `json:"fetches"`
	Uptime  time.Duration `json:"uptime"`
	Version string        `json:"version"`
	Commit  string        `json:"commit"`
}

// Source produces the parameters served on each fetch.
type Source interface {
	Values(ctx context.Context) (map[string]string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (map[string]string, error)

// Values implements Source.
func (f SourceFunc) Values(ctx context.Context) (map[string]string, error) { return f(ctx) }

// Options restricts which requests are answered. Empty fields accept any
// value.
type Options struct {
	ProjectID string
	APIKey    string
}

// -------- server -----------------------------------------------------

// Server answers fetch requests from a Source.
type Server struct {
	src     Source
	opts    Options
	start   time.Time
	mux     *http.ServeMux
	srv     *http.Server
	fetches atomic.Int64
}

// New creates a server ready to listen.
func New(src Source, o Options) *Server {
	s := &Server{
		src:   src,
		opts:  o,
		start: time.Now(),
		mux:   http.NewServeMux(),
	}

	s.mux.HandleFunc("/v1/projects/{project}/namespaces/{namespace}", s.handleFetch)
	s.mux.HandleFunc("/v1/status", s.handleStatus)

	s.srv = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe starts the HTTP server on a TCP address.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Info("api: listening", "addr", ln.Addr().String())
	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

// handleFetch answers the remote config client fetch call.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.PathValue("namespace") != _fetchNamespace {
		http.NotFound(w, r)
		return
	}
	if s.opts.ProjectID != "" && r.PathValue("project") != s.opts.ProjectID {
		http.Error(w, "unknown project", http.StatusNotFound)
		return
	}
	if s.opts.APIKey != "" && r.URL.Query().Get("key") != s.opts.APIKey {
		http.Error(w, "invalid api key", http.StatusForbidden)
		return
	}
	var req firebase.FetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AppInstanceID == "" {
		http.Error(w, "appInstanceId required", http.StatusBadRequest)
		return
	}

	values, err := s.src.Values(r.Context())
	if err != nil {
		log.Warn("api: source failed", "error", err.Error())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	n := s.fetches.Inc()
	log.Debug("api: fetch", "instance", req.AppInstanceID, "app", req.AppID, "entries", len(values), "count", n)

	resp := firebase.FetchResponse{
		Entries:         values,
		State:           "UPDATE",
		TemplateVersion: templateVersion(values),
	}
	if len(values) == 0 {
		resp.Entries = nil
		resp.State = "NO_TEMPLATE"
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

// handleStatus returns the server status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatusResponse{
		Fetches: s.fetches.Load(),
		Uptime:  time.Since(s.start),
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, fmt.Sprintf("Error encoding response: %v", err), http.StatusInternalServerError)
		return
	}
}

// templateVersion fingerprints the served values so clients can tell
// templates apart.
func templateVersion(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	h := fnv.New64a()
	for _, k := range keys {
		_, _ = h.Write([]byte(k))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(values[k]))
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
