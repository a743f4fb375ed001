package hcloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/gpurace/internal/config"
	"github.com/imamik/gpurace/internal/util/keygen"
)

// testServer mocks the Hetzner Cloud API.
type testServer struct {
	server *httptest.Server
	mux    *http.ServeMux

	mu    sync.Mutex
	calls map[string]int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{mux: http.NewServeMux(), calls: make(map[string]int)}
	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		ts.calls[r.Method+" "+r.URL.Path]++
		ts.mu.Unlock()
		ts.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) handleFunc(pattern string, handler http.HandlerFunc) {
	ts.mux.HandleFunc(pattern, handler)
}

func (ts *testServer) count(key string) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.calls[key]
}

func (ts *testServer) client() *hcloud.Client {
	return hcloud.NewClient(
		hcloud.WithToken("test-token"),
		hcloud.WithEndpoint(ts.server.URL),
	)
}

// reachability records port waits and probes instead of dialing.
type reachability struct {
	mu     sync.Mutex
	ports  []string
	probes []string
	err    error
}

func (r *reachability) waitPort(_ context.Context, ip string, _ int, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ports = append(r.ports, ip)
	return nil
}

func (r *reachability) probe(_ context.Context, ip string, key *keygen.KeyPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key == nil {
		panic("probe without key")
	}
	r.probes = append(r.probes, ip)
	return r.err
}

func (ts *testServer) provider(reach *reachability, opts ...Option) *Provider {
	base := []Option{
		WithHCloudClient(ts.client()),
		WithSettings(&config.Settings{
			ServerCreate:      10 * time.Second,
			PortWait:          time.Second,
			RetryMaxAttempts:  3,
			RetryInitialDelay: time.Millisecond,
		}),
	}
	p := NewProvider("test-token", append(base, opts...)...)
	if reach != nil {
		p.waitPort = reach.waitPort
		p.probe = reach.probe
	}
	return p
}

// jsonResponse writes a JSON response with the given status code and body.
func jsonResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// rawResponse writes a literal JSON body.
func rawResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func apiError(w http.ResponseWriter, statusCode int, code, message string) {
	rawResponse(w, statusCode, `{"error":{"code":"`+code+`","message":"`+message+`","details":null}}`)
}
