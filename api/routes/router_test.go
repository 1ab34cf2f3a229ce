package routes

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
	"gorm.io/gorm"

	"github.com/sokpheng-dev/salapay-backend/internal/payments"
	"github.com/sokpheng-dev/salapay-backend/internal/payway"
	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
	"github.com/sokpheng-dev/salapay-backend/pkg/redis"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPaymentsRepo struct {
	payment     *models.Payment
	transaction *models.PaywayTransaction
	student     *models.Student
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) payments.Repository { return s }

func (s *stubPaymentsRepo) Create(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *stubPaymentsRepo) Update(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *stubPaymentsRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentsRepo) FindByCode(ctx context.Context, code string) (*models.Payment, error) {
	return s.payment, nil
}

func (s *stubPaymentsRepo) LastCodeWithPrefix(ctx context.Context, prefix string) (string, error) {
	return "", nil
}

func (s *stubPaymentsRepo) CurrentTransaction(ctx context.Context, paymentID uuid.UUID) (*models.PaywayTransaction, error) {
	return s.transaction, nil
}

func (s *stubPaymentsRepo) FindStudentByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	return s.student, nil
}

type stubPaywayRepo struct {
	transaction *models.PaywayTransaction
	payment     *models.Payment
	pushbacks   int
}

func (s *stubPaywayRepo) WithTx(tx *gorm.DB) payway.Repository { return s }

func (s *stubPaywayRepo) UpsertTransactionByPayment(ctx context.Context, txn *models.PaywayTransaction) (*models.PaywayTransaction, error) {
	return txn, nil
}

func (s *stubPaywayRepo) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.PaywayTransaction, error) {
	return s.transaction, nil
}

func (s *stubPaywayRepo) FindTransactionByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PaywayTransaction, error) {
	return s.transaction, nil
}

func (s *stubPaywayRepo) FindTransactionByTranID(ctx context.Context, tranID string) (*models.PaywayTransaction, error) {
	return s.transaction, nil
}

func (s *stubPaywayRepo) UpdateTransaction(ctx context.Context, txn *models.PaywayTransaction) error {
	return nil
}

func (s *stubPaywayRepo) ListUnsettledExpiredTransactions(ctx context.Context, limit int) ([]models.PaywayTransaction, error) {
	return nil, nil
}

func (s *stubPaywayRepo) FindPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return s.payment, nil
}

func (s *stubPaywayRepo) UpdatePayment(ctx context.Context, payment *models.Payment) error {
	return nil
}

func (s *stubPaywayRepo) CreatePushback(ctx context.Context, pushback *models.PaywayPushback) error {
	s.pushbacks++
	return nil
}

type stubGatewayClient struct{}

func (stubGatewayClient) SendPurchase(ctx context.Context, form url.Values) (*payway.GatewayResponse, error) {
	return &payway.GatewayResponse{}, nil
}

func (stubGatewayClient) CheckStatus(ctx context.Context, form url.Values) (*payway.GatewayResponse, error) {
	return &payway.GatewayResponse{Raw: json.RawMessage(`{}`)}, nil
}

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, req *http.Request, path string) string {
	return "https://salapay.test" + path
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0", BaseURL: "https://salapay.test"},
		Payway: config.PaywayConfig{
			APIKey:           "test-key",
			MerchantID:       "merchant",
			AckAlwaysSuccess: true,
		},
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, paywayRepo *stubPaywayRepo) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Repo:     &stubPaymentsRepo{},
		TxRunner: stubTxRunner{},
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}

	khqrService, err := payway.NewService(payway.ServiceParams{
		Config:   cfg.Payway,
		App:      cfg.App,
		Repo:     paywayRepo,
		Client:   stubGatewayClient{},
		Signer:   payway.NewSigner(cfg.Payway.APIKey),
		Resolver: stubResolver{},
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("khqr service: %v", err)
	}

	processor, err := payway.NewProcessor(payway.ProcessorParams{
		Repo:     paywayRepo,
		TxRunner: stubTxRunner{},
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("pushback processor: %v", err)
	}

	return NewRouter(
		cfg,
		logg,
		stubPinger{},         // db.Pinger
		(*redis.Client)(nil), // *redis.Client
		paymentsService,
		khqrService,
		processor,
	)
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(t, testConfig(), &stubPaywayRepo{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-SalaPay-Env") != "test" {
		t.Fatalf("missing env header")
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(t, testConfig(), &stubPaywayRepo{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestWebhookRouteBypassesIdempotencyKey(t *testing.T) {
	paywayRepo := &stubPaywayRepo{}
	router := newTestRouter(t, testConfig(), paywayRepo)

	params, _ := json.Marshal(map[string]string{
		"transaction_uuid": uuid.NewString(),
		"payment_uuid":     uuid.NewString(),
	})
	form := url.Values{}
	form.Set("tran_id", "PAY202501-0001")
	form.Set("status", "0")
	form.Set("return_params", base64.StdEncoding.EncodeToString(params))

	// No Idempotency-Key header; the gateway never sends one.
	req := httptest.NewRequest(http.MethodPost, "/api/payway/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", resp.Code, resp.Body.String())
	}
	if resp.Body.String() != `{"status":"success"}` {
		t.Fatalf("unexpected ack body: %s", resp.Body.String())
	}
	if paywayRepo.pushbacks != 1 {
		t.Fatalf("expected pushback recorded, got %d", paywayRepo.pushbacks)
	}
}

func TestPaymentStatusRouteWired(t *testing.T) {
	router := newTestRouter(t, testConfig(), &stubPaywayRepo{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments/"+uuid.NewString()+"/status", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	// Stub repo returns no payment, so the service reports not found. The
	// route itself must resolve past the middleware chain.
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d (%s)", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"error"`) {
		t.Fatalf("expected error envelope, got %s", resp.Body.String())
	}
}
