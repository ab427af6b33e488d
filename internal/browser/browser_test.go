package browser

import (
	"strings"
	"testing"
)

func TestCommandRejectsNonHTTP(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://wtwcinemas.co.uk/st-austell/coming-soon/", false},
		{"http://example.com", false},
		{"file:///etc/passwd", true},
		{"javascript:alert(1)", true},
		{"webcal://example.com/wtw-st-austell.ics", true},
		{"", true},
	}

	for _, tt := range tests {
		_, err := Command("linux", tt.url)
		if tt.wantErr && err == nil {
			t.Errorf("Command(%q): expected error, got nil", tt.url)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("Command(%q): unexpected error: %v", tt.url, err)
		}
	}
}

func TestCommandPerPlatform(t *testing.T) {
	tests := []struct {
		goos string
		want string
	}{
		{"darwin", "open"},
		{"linux", "xdg-open"},
		{"freebsd", "xdg-open"},
		{"windows", "rundll32"},
	}
	for _, tt := range tests {
		cmd, err := Command(tt.goos, "https://example.com")
		if err != nil {
			t.Fatalf("Command(%s): %v", tt.goos, err)
		}
		if !strings.HasSuffix(cmd.Args[0], tt.want) {
			t.Errorf("%s: expected %s, got %v", tt.goos, tt.want, cmd.Args)
		}
		if cmd.Args[len(cmd.Args)-1] != "https://example.com" {
			t.Errorf("%s: url not passed last: %v", tt.goos, cmd.Args)
		}
	}
}
