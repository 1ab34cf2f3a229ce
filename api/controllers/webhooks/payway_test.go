package webhooks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/sokpheng-dev/salapay-backend/internal/payway"
	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	"github.com/sokpheng-dev/salapay-backend/pkg/errors"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
)

const ackBody = `{"status":"success"}`

type fakeProcessor struct {
	calls    int
	received *payway.Pushback
	err      error
}

func (f *fakeProcessor) HandlePushback(ctx context.Context, pushback *payway.Pushback) error {
	f.calls++
	f.received = pushback
	return f.err
}

func webhookLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "webhooks-test", Output: io.Discard})
}

func encodedReturnParams(t *testing.T) string {
	t.Helper()
	raw, err := json.Marshal(map[string]string{
		"transaction_uuid": uuid.NewString(),
		"payment_uuid":     uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("marshal return params: %v", err)
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func TestPaywayWebhook_FormEncodedDelivery(t *testing.T) {
	processor := &fakeProcessor{}
	handler := PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: true}, webhookLogger())

	form := url.Values{}
	form.Set("tran_id", "PAY202501-0001")
	form.Set("apv", "APV123456")
	form.Set("status", "0")
	form.Set("status_message", "Approved")
	form.Set("return_params", encodedReturnParams(t))

	req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != ackBody {
		t.Fatalf("unexpected ack body: %s", rec.Body.String())
	}
	if processor.calls != 1 {
		t.Fatalf("expected processor called once, got %d", processor.calls)
	}
	if processor.received.TranID != "PAY202501-0001" {
		t.Fatalf("unexpected tran_id: %s", processor.received.TranID)
	}
	if processor.received.Status != 0 {
		t.Fatalf("expected status 0, got %d", processor.received.Status)
	}
	if processor.received.APV != "APV123456" {
		t.Fatalf("unexpected apv: %s", processor.received.APV)
	}

	// The raw audit payload keeps every delivered field.
	var raw map[string]string
	if err := json.Unmarshal(processor.received.Raw, &raw); err != nil {
		t.Fatalf("unmarshal raw payload: %v", err)
	}
	if raw["status_message"] != "Approved" {
		t.Fatalf("raw payload missing status_message: %v", raw)
	}
}

func TestPaywayWebhook_JSONDelivery(t *testing.T) {
	processor := &fakeProcessor{}
	handler := PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: true}, webhookLogger())

	payload := map[string]any{
		"tran_id":       "PAY202501-0002",
		"apv":           "APV777",
		"status":        json.Number("3"),
		"return_params": encodedReturnParams(t),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if processor.received.Status != 3 {
		t.Fatalf("expected status 3, got %d", processor.received.Status)
	}
}

func TestPaywayWebhook_StatusAsJSONString(t *testing.T) {
	processor := &fakeProcessor{}
	handler := PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: true}, webhookLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook",
		strings.NewReader(`{"tran_id":"PAY202501-0003","status":"0"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if processor.received.Status != 0 {
		t.Fatalf("expected status 0, got %d", processor.received.Status)
	}
}

func TestPaywayWebhook_MissingStatusClassifiedAsFailure(t *testing.T) {
	processor := &fakeProcessor{}
	handler := PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: true}, webhookLogger())

	form := url.Values{}
	form.Set("tran_id", "PAY202501-0004")

	req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if processor.received.Status != statusCodeUnknown {
		t.Fatalf("expected unknown status code, got %d", processor.received.Status)
	}
}

func TestPaywayWebhook_SentinelErrorsAreAcked(t *testing.T) {
	for _, sentinel := range []error{payway.ErrMalformedReturnParams, payway.ErrUnknownTransaction} {
		processor := &fakeProcessor{err: sentinel}
		handler := PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: false}, webhookLogger())

		req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader("tran_id=x&status=0"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 ack for %v, got %d", sentinel, rec.Code)
		}
		if rec.Body.String() != ackBody {
			t.Fatalf("unexpected ack body: %s", rec.Body.String())
		}
	}
}

func TestPaywayWebhook_ProcessingErrorAckPolicy(t *testing.T) {
	processingErr := errors.New(errors.CodeInternal, "db unavailable")

	processor := &fakeProcessor{err: processingErr}
	handler := PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: true}, webhookLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader("tran_id=x&status=0"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with ack-always policy, got %d", rec.Code)
	}

	processor = &fakeProcessor{err: processingErr}
	handler = PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: false}, webhookLogger())
	req = httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader("tran_id=x&status=0"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 without ack-always policy, got %d", rec.Code)
	}
	if rec.Body.String() != ackBody {
		t.Fatalf("ack body must stay fixed even on 500, got %s", rec.Body.String())
	}
}

func TestPaywayWebhook_UndecodableBodyRecordedAndAcked(t *testing.T) {
	cases := []struct {
		name        string
		body        string
		contentType string
	}{
		{name: "malformed json", body: "{not json", contentType: "application/json"},
		{name: "bad percent escape", body: "tran_id=%zz&status=0", contentType: "application/x-www-form-urlencoded"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			processor := &fakeProcessor{}
			handler := PaywayWebhook(processor, config.PaywayConfig{AckAlwaysSuccess: true}, webhookLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", tc.contentType)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("undecodable delivery must still be acked, got %d", rec.Code)
			}
			if rec.Body.String() != ackBody {
				t.Fatalf("unexpected ack body %q", rec.Body.String())
			}
			if processor.calls != 1 {
				t.Fatalf("delivery must be handed to the processor, got %d calls", processor.calls)
			}
			if processor.received.Status != statusCodeUnknown {
				t.Fatalf("undecodable delivery must classify as unknown, got %d", processor.received.Status)
			}
			if !strings.Contains(string(processor.received.Raw), tc.body) {
				t.Fatalf("raw body missing from audit payload: %s", processor.received.Raw)
			}
		})
	}
}
