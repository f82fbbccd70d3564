package console

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Tyrowin/linechat/internal/logger"
	"github.com/Tyrowin/linechat/internal/testhelpers"
)

// TestOriginPolicy tests the origin allow list.
func TestOriginPolicy(t *testing.T) {
	p := newOriginPolicy([]string{"http://LOCALHOST:8080", " ", "not a url", "https://console.example"}, logger.Discard())

	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:8080", true},
		{"HTTP://localhost:8080", true},
		{"https://console.example", true},
		{"http://evil.example", false},
		{"", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := p.check(r); got != tt.want {
			t.Errorf("check(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

// TestOriginPolicyWildcard tests that a "*" entry allows any origin.
func TestOriginPolicyWildcard(t *testing.T) {
	p := newOriginPolicy([]string{"*"}, logger.Discard())

	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Origin", "http://anywhere.example")
	if !p.check(r) {
		t.Error("wildcard should allow any origin")
	}

	r.Header.Del("Origin")
	if p.check(r) {
		t.Error("a missing Origin header must still be rejected")
	}
}

// TestWebSocketRejectsDisallowedOrigin tests that the upgrade fails for an origin not
// on the allow list.
func TestWebSocketRejectsDisallowedOrigin(t *testing.T) {
	_, ts := newTestConsole(t, &fakeController{}, "http://localhost:8080")

	conn, err := testhelpers.ConnectWebSocket(wsURL(ts), "http://evil.example")
	if err == nil {
		_ = conn.Close()
		t.Fatal("Expected the handshake to be rejected")
	}

	conn, err = testhelpers.ConnectWebSocket(wsURL(ts), "http://localhost:8080")
	if err != nil {
		t.Fatalf("allowed origin was rejected: %v", err)
	}
	_ = testhelpers.CloseWebSocket(conn)
}
