package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestRealIP(t *testing.T) {
	t.Parallel()

	trusted := []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("2001:db8:ffff::/48"),
	}

	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string][]string
		want       string
	}{
		{
			name:       "untrusted peer keeps socket address",
			remoteAddr: "203.0.113.9:4455",
			headers:    map[string][]string{"X-Forwarded-For": {"198.51.100.4"}, "X-Real-IP": {"198.51.100.5"}},
			want:       "203.0.113.9",
		},
		{
			name:       "trusted peer without headers",
			remoteAddr: "10.0.0.2:80",
			want:       "10.0.0.2",
		},
		{
			name:       "trusted peer forwarded for",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string][]string{"X-Forwarded-For": {"198.51.100.4"}},
			want:       "198.51.100.4",
		},
		{
			name:       "spoofed leftmost hop is skipped",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string][]string{"X-Forwarded-For": {"1.2.3.4, 198.51.100.4, 10.0.0.7"}},
			want:       "198.51.100.4",
		},
		{
			name:       "repeated header lines are joined",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string][]string{"X-Forwarded-For": {"1.2.3.4", "198.51.100.4"}},
			want:       "198.51.100.4",
		},
		{
			name:       "all hops trusted uses leftmost",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string][]string{"X-Forwarded-For": {"10.1.1.1, 10.0.0.7"}},
			want:       "10.1.1.1",
		},
		{
			name:       "garbage forwarded for falls back to real ip",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string][]string{"X-Forwarded-For": {"not-an-ip"}, "X-Real-IP": {" 198.51.100.5 "}},
			want:       "198.51.100.5",
		},
		{
			name:       "garbage headers keep socket address",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string][]string{"X-Real-IP": {"<script>"}},
			want:       "10.0.0.2",
		},
		{
			name:       "ipv6 proxy and client",
			remoteAddr: "[2001:db8:ffff::1]:443",
			headers:    map[string][]string{"X-Forwarded-For": {"2001:db8::42"}},
			want:       "2001:db8::42",
		},
		{
			name:       "mapped ipv4 client",
			remoteAddr: "10.0.0.2:80",
			headers:    map[string][]string{"X-Forwarded-For": {"::ffff:198.51.100.4"}},
			want:       "198.51.100.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got string
			handler := RealIP(trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientIP(r)
			}))

			req := httptest.NewRequest(http.MethodGet, "/out", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, values := range tt.headers {
				for _, v := range values {
					req.Header.Add(k, v)
				}
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("ClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRealIP_NoTrustedProxies(t *testing.T) {
	t.Parallel()

	var got string
	handler := RealIP(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIP(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/out", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "198.51.100.4")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if got != "127.0.0.1" {
		t.Errorf("ClientIP() = %q, want 127.0.0.1", got)
	}
}
