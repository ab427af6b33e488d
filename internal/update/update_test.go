package update

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func releaseServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		current string
		want    string
	}{
		{"newer", 200, `{"tag_name":"v1.3.0","html_url":"https://example.com/r"}`, "v1.2.0", "1.3.0"},
		{"same", 200, `{"tag_name":"v1.2.0"}`, "1.2.0", ""},
		{"dev build", 200, `{"tag_name":"v1.3.0"}`, "dev", ""},
		{"no tag", 200, `{}`, "1.2.0", ""},
		{"server error", 500, ``, "1.2.0", ""},
		{"bad json", 200, `not json`, "1.2.0", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := releaseServer(t, tt.status, tt.body)
			got := check(context.Background(), srv.Client(), srv.URL, tt.current)
			if tt.want == "" {
				if got != nil {
					t.Errorf("expected no update, got %+v", got)
				}
				return
			}
			if got == nil || got.LatestVersion != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, got)
			}
			if got.URL != "https://example.com/r" {
				t.Errorf("unexpected release url %q", got.URL)
			}
		})
	}
}
