package utils

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIP(t *testing.T) {
	tests := map[string]string{
		"::ffff:10.0.0.1":      "10.0.0.1",
		"::FFFF:10.0.0.1":      "10.0.0.1",
		"10.0.0.1:54321":       "10.0.0.1",
		"::ffff:10.0.0.1:8080": "10.0.0.1",
		" 192.168.1.7 ":        "192.168.1.7",
		"2001:db8::1":          "2001:db8::1",
		"::1":                  "::1",
		"2001:DB8:0:0::1":      "2001:db8::1",
		"1:2::3:4:5:6:7":       "1:2:0:3:4:5:6:7",
		"not-an-ip":            "not-an-ip",
		"":                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeIP(in), in)
	}
}

func TestClientIPFromHeaders(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": "1.1.1.1, 2.2.2.2", "X-Real-IP": "3.3.3.3"}, "4.4.4.4:1", "1.1.1.1"},
		{"real ip", map[string]string{"X-Real-IP": "3.3.3.3", "CF-Connecting-IP": "5.5.5.5"}, "4.4.4.4:1", "3.3.3.3"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "5.5.5.5"}, "4.4.4.4:1", "5.5.5.5"},
		{"remote addr with port", nil, "4.4.4.4:1234", "4.4.4.4"},
		{"remote ipv6", nil, "[::1]:1234", "::1"},
		{"remote mapped", nil, "[::ffff:7.7.7.7]:1234", "7.7.7.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.header {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIPFromHeaders(h, tt.remote))
		})
	}
}
