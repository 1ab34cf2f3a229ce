package payway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	pkgerrors "github.com/sokpheng-dev/salapay-backend/pkg/errors"
)

func newTestClient(purchaseURL, checkURL string) *Client {
	return NewClient(config.PaywayConfig{
		PurchaseURL:         purchaseURL,
		CheckTransactionURL: checkURL,
	}, nil)
}

func TestClient_SendPurchaseParsesQRBody(t *testing.T) {
	var gotContentType string
	var gotForm url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"qrString":"000201","qrImage":"https://qr.test/a.png","abapay_deeplink":"abamobilebank://x","status":{"code":"00","message":"success"}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	form := url.Values{}
	form.Set("tran_id", "PAY202501-0001")

	resp, err := client.SendPurchase(context.Background(), form)
	if err != nil {
		t.Fatalf("send purchase: %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Fatalf("content type %q", gotContentType)
	}
	if gotForm.Get("tran_id") != "PAY202501-0001" {
		t.Fatalf("form not forwarded")
	}
	if !resp.HasQRData() {
		t.Fatalf("expected qr data")
	}
	if resp.QRString != "000201" || resp.Deeplink != "abamobilebank://x" {
		t.Fatalf("body misparsed: %+v", resp)
	}
	if resp.Status == nil || resp.Status.Code != "00" {
		t.Fatalf("status misparsed: %+v", resp.Status)
	}
	if len(resp.Raw) == 0 {
		t.Fatalf("raw body not retained")
	}
}

func TestClient_RejectedStatusIsDependencyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "merchant disabled", http.StatusForbidden)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	_, err := client.SendPurchase(context.Background(), url.Values{})
	if err == nil {
		t.Fatalf("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClient_MalformedBodyIsDependencyError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway maintenance</html>"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	_, err := client.CheckStatus(context.Background(), url.Values{})
	if err == nil {
		t.Fatalf("expected error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClient_UnreachableGateway(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1", "http://127.0.0.1:1")
	_, err := client.SendPurchase(context.Background(), url.Values{})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestGatewayStatus_UnmarshalShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		code string
	}{
		{"object", `{"status":{"code":"00","message":"ok"}}`, "00"},
		{"numeric", `{"status":0}`, "0"},
		{"string", `{"status":"00"}`, "00"},
	}
	for _, tc := range cases {
		var resp GatewayResponse
		if err := json.Unmarshal([]byte(tc.body), &resp); err != nil {
			t.Fatalf("%s: unmarshal: %v", tc.name, err)
		}
		if resp.Status == nil || resp.Status.Code != tc.code {
			t.Fatalf("%s: expected code %q, got %+v", tc.name, tc.code, resp.Status)
		}
	}
}
