package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLLMClientConfig(t *testing.T) {
	if got := LLMClientConfig(0).Timeout; got != 60*time.Second {
		t.Errorf("default timeout = %v, want 60s", got)
	}
	if got := LLMClientConfig(5 * time.Second).Timeout; got != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", got)
	}
}

func TestNewClientTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := DefaultClientConfig()
	cfg.Timeout = 50 * time.Millisecond
	client := NewClient(cfg)

	resp, err := client.Get(srv.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected timeout error")
	}
}
