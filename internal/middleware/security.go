package middleware

import (
	"net/http"
	"strconv"
)

// SecurityHeadersConfig lists the response headers SecurityHeaders sets.
// Empty values are skipped; HSTSMaxAge of zero disables HSTS.
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	FrameOptions          string
	ReferrerPolicy        string
	HSTSMaxAge            int
}

// APISecurityHeadersConfig suits a JSON API that never serves documents.
// HSTS is only sent in production, where TLS terminates in front of us.
func APISecurityHeadersConfig(production bool) SecurityHeadersConfig {
	cfg := SecurityHeadersConfig{
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		FrameOptions:          "DENY",
		ReferrerPolicy:        "no-referrer",
	}
	if production {
		cfg.HSTSMaxAge = 365 * 24 * 60 * 60
	}
	return cfg
}

func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	headers := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"Cache-Control", "no-store"},
		{"Content-Security-Policy", config.ContentSecurityPolicy},
		{"X-Frame-Options", config.FrameOptions},
		{"Referrer-Policy", config.ReferrerPolicy},
	}
	if config.HSTSMaxAge > 0 {
		headers = append(headers, [2]string{"Strict-Transport-Security", "max-age=" + strconv.Itoa(config.HSTSMaxAge) + "; includeSubDomains"})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for _, kv := range headers {
				if kv[1] != "" {
					h.Set(kv[0], kv[1])
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
