package tenant

import (
	"testing"
	"time"
)

func TestParseExecCommand(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantErr bool
	}{
		{"whitelisted telegram bind", "channel bind-telegram --token abc", false},
		{"whitelisted discord bind", "channel bind-discord --token abc", false},
		{"whitelisted slack bind", "channel bind-slack --webhook https://example.com", false},
		{"whitelisted whatsapp bind", "channel bind-whatsapp --number +1", false},
		{"agent restart not whitelisted", "agent restart", true},
		{"agent status not whitelisted", "agent status", true},
		{"single token rejected", "channel", true},
		{"empty command rejected", "", true},
		{"disallowed prefix rejected", "rm -rf /", true},
		{"semicolon rejected", "channel bind-slack; rm -rf /", true},
		{"pipe rejected", "channel bind-slack | cat", true},
		{"backtick rejected", "channel bind-slack `whoami`", true},
		{"dollar rejected", "channel bind-slack $HOME", true},
		{"ampersand rejected", "channel bind-slack &", true},
		{"unrecognized second token rejected", "channel delete-all", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseExecCommand(tt.command)
			if tt.wantErr && err == nil {
				t.Errorf("parseExecCommand(%q): expected error, got nil", tt.command)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("parseExecCommand(%q): unexpected error %v", tt.command, err)
			}
		})
	}
}

func TestParseExecCommandReturnsArgv(t *testing.T) {
	argv, err := parseExecCommand("channel bind-slack --webhook https://example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"channel", "bind-slack", "--webhook", "https://example.com"}
	if len(argv) != len(want) {
		t.Fatalf("argv = %v, want %v", argv, want)
	}
	for i := range want {
		if argv[i] != want[i] {
			t.Errorf("argv[%d] = %q, want %q", i, argv[i], want[i])
		}
	}
}

func TestResourceRangeWindow(t *testing.T) {
	tests := []struct {
		rangeParam string
		want       time.Duration
	}{
		{"1h", time.Hour},
		{"6h", 6 * time.Hour},
		{"24h", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"", time.Hour},
		{"bogus", time.Hour},
	}
	for _, tt := range tests {
		if got := resourceRangeWindow(tt.rangeParam); got != tt.want {
			t.Errorf("resourceRangeWindow(%q) = %v, want %v", tt.rangeParam, got, tt.want)
		}
	}
}
