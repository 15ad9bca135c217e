package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseHostNoPort(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"10.0.0.1:8080", "10.0.0.1"},
		{"10.0.0.1", "10.0.0.1"},
		{"[::1]:8080", "::1"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ParseHostNoPort(tt.input); got != tt.expected {
			t.Errorf("ParseHostNoPort(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestFirstForwardedFor(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"203.0.113.7", "203.0.113.7"},
		{"203.0.113.7, 10.0.0.1, 10.0.0.2", "203.0.113.7"},
		{"  203.0.113.7 , 10.0.0.1", "203.0.113.7"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := FirstForwardedFor(tt.input); got != tt.expected {
			t.Errorf("FirstForwardedFor(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		realIP     string
		trustProxy bool
		expected   string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "10.0.0.1:1234",
			expected:   "10.0.0.1",
		},
		{
			name:       "forwarded header ignored without trust",
			remoteAddr: "10.0.0.1:1234",
			xff:        "203.0.113.7",
			trustProxy: false,
			expected:   "10.0.0.1",
		},
		{
			name:       "forwarded header wins with trust",
			remoteAddr: "10.0.0.1:1234",
			xff:        "203.0.113.7, 10.0.0.1",
			trustProxy: true,
			expected:   "203.0.113.7",
		},
		{
			name:       "real ip fallback",
			remoteAddr: "10.0.0.1:1234",
			realIP:     "203.0.113.9",
			trustProxy: true,
			expected:   "203.0.113.9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				r.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ClientIP(r, tt.trustProxy); got != tt.expected {
				t.Errorf("ClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", "192.168.1.5", " ", "garbage"})

	tests := []struct {
		ip       string
		expected bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.5", true},
		{"192.168.1.6", false},
		{"203.0.113.7", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.expected {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.expected)
		}
	}

	if m.IsEmpty() {
		t.Errorf("IsEmpty() = true, want false")
	}
	if !NewIPMatcher(nil).IsEmpty() {
		t.Errorf("IsEmpty() on empty matcher = false, want true")
	}
}
