package payway

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"testing"

	"github.com/sokpheng-dev/salapay-backend/pkg/config"
)

func newResolver(env, tunnel string) *URLResolver {
	return NewURLResolver(
		config.AppConfig{Env: env, BaseURL: "http://localhost:8080"},
		config.PaywayConfig{TunnelURL: tunnel},
		testLogger(),
	)
}

func decodeResolved(t *testing.T, encoded string) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("resolved url is not base64: %v", err)
	}
	return string(raw)
}

func TestURLResolver_ProductionUsesBaseURL(t *testing.T) {
	resolver := NewURLResolver(
		config.AppConfig{Env: "prod", BaseURL: "https://api.salapay.school/"},
		config.PaywayConfig{TunnelURL: "https://tunnel.test"},
		testLogger(),
	)
	got := decodeResolved(t, resolver.Resolve(context.Background(), nil, "/api/payway/webhook"))
	if got != "https://api.salapay.school/api/payway/webhook" {
		t.Fatalf("resolved %q", got)
	}
}

func TestURLResolver_DevPrefersConfiguredTunnel(t *testing.T) {
	resolver := newResolver("dev", "https://abc123.ngrok-free.app/")
	got := decodeResolved(t, resolver.Resolve(context.Background(), nil, "api/payway/webhook"))
	if got != "https://abc123.ngrok-free.app/api/payway/webhook" {
		t.Fatalf("resolved %q", got)
	}
}

func TestURLResolver_DevDetectsForwardedNgrokHost(t *testing.T) {
	resolver := newResolver("dev", "")
	req := httptest.NewRequest("POST", "/api/v1/payments/x/khqr", nil)
	req.Header.Set("X-Forwarded-Host", "d4f1.ngrok-free.app")

	got := decodeResolved(t, resolver.Resolve(context.Background(), req, "/api/payway/webhook"))
	if got != "https://d4f1.ngrok-free.app/api/payway/webhook" {
		t.Fatalf("resolved %q", got)
	}
}

func TestURLResolver_DevIgnoresNonTunnelForwardedHost(t *testing.T) {
	resolver := newResolver("dev", "")
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Forwarded-Host", "school.internal")

	got := decodeResolved(t, resolver.Resolve(context.Background(), req, "/api/payway/webhook"))
	if got != "http://localhost:8080/api/payway/webhook" {
		t.Fatalf("resolved %q", got)
	}
}

func TestURLResolver_DevFallsBackToBaseURL(t *testing.T) {
	resolver := newResolver("dev", "")
	got := decodeResolved(t, resolver.Resolve(context.Background(), nil, "/api/payway/webhook"))
	if got != "http://localhost:8080/api/payway/webhook" {
		t.Fatalf("resolved %q", got)
	}
}
