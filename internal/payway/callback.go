package payway

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
)

// URLResolver builds the absolute callback URL PayWay will POST pushbacks
// to. PayWay can only reach public addresses, so outside production the
// resolver prefers an explicit tunnel URL, then a tunnel hostname detected
// from forwarded-host headers, and only then the (unreachable) local base
// URL with a loud warning.
type URLResolver struct {
	app    config.AppConfig
	tunnel string
	log    *logger.Logger
}

func NewURLResolver(app config.AppConfig, payway config.PaywayConfig, log *logger.Logger) *URLResolver {
	return &URLResolver{
		app:    app,
		tunnel: strings.TrimRight(payway.TunnelURL, "/"),
		log:    log,
	}
}

// Resolve returns base+path for the current environment, base64-encoded the
// way PayWay expects the return_url field on the wire. The request is
// optional; it is only consulted for tunnel-host detection in dev.
func (r *URLResolver) Resolve(ctx context.Context, req *http.Request, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	base := strings.TrimRight(r.app.BaseURL, "/")
	if r.app.IsProd() || r.app.IsStaging() {
		return encodeCallbackURL(base + path)
	}

	if r.tunnel != "" {
		return encodeCallbackURL(r.tunnel + path)
	}

	if host := tunnelHostFromRequest(req); host != "" {
		return encodeCallbackURL("https://" + host + path)
	}

	r.log.Warn(ctx, "no public tunnel configured; payway callbacks will target the local base url and cannot be delivered")
	return encodeCallbackURL(base + path)
}

func encodeCallbackURL(url string) string {
	return base64.StdEncoding.EncodeToString([]byte(url))
}

// tunnelHostFromRequest sniffs a forwarded ngrok host. Local dev behind
// `ngrok http` sets these on every proxied request.
func tunnelHostFromRequest(req *http.Request) string {
	if req == nil {
		return ""
	}
	for _, header := range []string{"X-Forwarded-Host", "X-Original-Host"} {
		host := strings.TrimSpace(req.Header.Get(header))
		if host != "" && strings.Contains(host, "ngrok") {
			return host
		}
	}
	return ""
}
