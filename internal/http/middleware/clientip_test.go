package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func resolvedIP(t *testing.T, trust bool, remote string, headers map[string]string) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got string
	r.Use(ClientIP(trust))
	r.GET("/", func(c *gin.Context) { got = ClientIPFrom(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestClientIP_TrustForwarded(t *testing.T) {
	cases := []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"first xff hop", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": " 203.0.113.5 , 10.0.0.2"}, "203.0.113.5"},
		{"real ip", "10.0.0.1:1234", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"xff beats real ip", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "203.0.113.5", "X-Real-IP": "198.51.100.7"}, "203.0.113.5"},
		{"empty xff hop", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": " , 10.0.0.2", "X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
		{"socket", "192.0.2.9:5555", nil, "192.0.2.9"},
		{"socket without port", "192.0.2.9", nil, "192.0.2.9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := resolvedIP(t, true, tc.remote, tc.headers); got != tc.want {
				t.Fatalf("got %q; want %q", got, tc.want)
			}
		})
	}
}

func TestClientIP_UntrustedUsesGin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	_ = r.SetTrustedProxies(nil)
	var got string
	r.Use(ClientIP(false))
	r.GET("/", func(c *gin.Context) { got = ClientIPFrom(c) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	r.ServeHTTP(httptest.NewRecorder(), req)

	if got != "192.0.2.9" {
		t.Fatalf("spoofed header should be ignored without trusted proxies; got %q", got)
	}
}
