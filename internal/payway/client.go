package payway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	pkgerrors "github.com/sokpheng-dev/salapay-backend/pkg/errors"
	"github.com/sokpheng-dev/salapay-backend/pkg/metrics"
)

const (
	operationPurchase    = "purchase"
	operationCheckStatus = "check_status"
)

// GatewayStatus is PayWay's status envelope. Some endpoints return it as an
// object {code, message}, others as a bare scalar code.
type GatewayStatus struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *GatewayStatus) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		type alias GatewayStatus
		var decoded alias
		if err := json.Unmarshal(trimmed, &decoded); err != nil {
			return err
		}
		*s = GatewayStatus(decoded)
		return nil
	}
	var scalar json.Number
	if err := json.Unmarshal(trimmed, &scalar); err != nil {
		var str string
		if err := json.Unmarshal(trimmed, &str); err != nil {
			return err
		}
		s.Code = str
		return nil
	}
	s.Code = scalar.String()
	return nil
}

// GatewayResponse is the parsed body of a PayWay API call plus the raw bytes
// for audit. The three QR fields are only populated by the purchase endpoint.
type GatewayResponse struct {
	QRString string          `json:"qrString"`
	QRImage  string          `json:"qrImage"`
	Deeplink string          `json:"abapay_deeplink"`
	Status   *GatewayStatus  `json:"status"`
	Raw      json.RawMessage `json:"-"`
}

// HasQRData reports whether the purchase call yielded anything the payer can
// scan or tap.
func (r *GatewayResponse) HasQRData() bool {
	return r != nil && (r.QRString != "" || r.QRImage != "" || r.Deeplink != "")
}

// Client is the thin HTTP boundary to PayWay. One outbound call per
// invocation, no retries; callers own retry policy.
type Client struct {
	httpClient  *http.Client
	purchaseURL string
	checkURL    string
	metrics     *metrics.PaywayMetrics
}

func NewClient(cfg config.PaywayConfig, paywayMetrics *metrics.PaywayMetrics) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		purchaseURL: cfg.PurchaseURL,
		checkURL:    cfg.CheckTransactionURL,
		metrics:     paywayMetrics,
	}
}

// SendPurchase posts a signed purchase / KHQR request.
func (c *Client) SendPurchase(ctx context.Context, form url.Values) (*GatewayResponse, error) {
	return c.post(ctx, operationPurchase, c.purchaseURL, form)
}

// CheckStatus posts a signed check-transaction request.
func (c *Client) CheckStatus(ctx context.Context, form url.Values) (*GatewayResponse, error) {
	return c.post(ctx, operationCheckStatus, c.checkURL, form)
}

func (c *Client) post(ctx context.Context, operation, endpoint string, form url.Values) (*GatewayResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		c.metrics.IncRequestFailure(operation, "build_request")
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build payway request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ObserveRequest(operation, time.Since(start))
	if err != nil {
		c.metrics.IncRequestFailure(operation, "unreachable")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payway unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		c.metrics.IncRequestFailure(operation, "read_body")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read payway response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.IncRequestFailure(operation, "rejected")
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payway rejected request").
			WithDetails(map[string]any{
				"http_status": resp.StatusCode,
				"body":        string(body),
			})
	}

	var parsed GatewayResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		c.metrics.IncRequestFailure(operation, "malformed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payway response malformed")
	}
	parsed.Raw = json.RawMessage(body)
	return &parsed, nil
}
