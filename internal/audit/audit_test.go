package audit

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceClass(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		want      string
	}{
		{
			name:      "windows desktop",
			userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			want:      DeviceDesktop,
		},
		{
			name:      "macintosh desktop",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15",
			want:      DeviceDesktop,
		},
		{
			name:      "android mobile",
			userAgent: "Mozilla/5.0 (Linux; Android 14; Pixel 8) Mobile Safari/537.36",
			want:      DeviceMobile,
		},
		{
			name:      "iphone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
			want:      DeviceMobile,
		},
		{
			name:      "ipad tablet",
			userAgent: "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)",
			want:      DeviceTablet,
		},
		{
			name:      "curl is a bot",
			userAgent: "curl/8.4.0",
			want:      DeviceBot,
		},
		{
			name:      "crawler",
			userAgent: "Googlebot/2.1 (+http://www.google.com/bot.html)",
			want:      DeviceBot,
		},
		{
			name:      "empty",
			userAgent: "",
			want:      DeviceUnknown,
		},
		{
			name:      "unrecognized",
			userAgent: "SomeCustomClient/1.0",
			want:      DeviceUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeviceClass(tt.userAgent))
		})
	}
}

func TestMaskIP(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{name: "ipv4", addr: "203.0.113.42", want: "203.0.113.*"},
		{name: "ipv4 loopback", addr: "127.0.0.1", want: "127.0.0.*"},
		{name: "ipv6", addr: "2001:db8:85a3::8a2e:370:7334", want: "2001:db8::*"},
		{name: "empty", addr: "", want: ""},
		{name: "garbage", addr: "not-an-ip", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaskIP(tt.addr))
		})
	}
}

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/sync", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64)")
	req.Header.Set("X-Forwarded-For", "203.0.113.42, 10.0.0.1")
	req.Header.Set("CF-IPCountry", "DE")

	info := FromRequest(req)

	assert.Equal(t, DeviceDesktop, info.Device)
	assert.Equal(t, "203.0.113.*", info.IP)
	assert.Equal(t, "DE", info.Country)
}

func TestFromRequest_NoProxyHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/v1/sync", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("User-Agent", "curl/8.4.0")

	info := FromRequest(req)

	assert.Equal(t, DeviceBot, info.Device)
	assert.Equal(t, "192.0.2.*", info.IP)
	assert.Empty(t, info.Country)
}
