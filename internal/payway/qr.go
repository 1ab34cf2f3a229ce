package payway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
	"github.com/sokpheng-dev/salapay-backend/pkg/enums"
	pkgerrors "github.com/sokpheng-dev/salapay-backend/pkg/errors"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
)

type gatewayClient interface {
	SendPurchase(ctx context.Context, form url.Values) (*GatewayResponse, error)
	CheckStatus(ctx context.Context, form url.Values) (*GatewayResponse, error)
}

type callbackResolver interface {
	Resolve(ctx context.Context, req *http.Request, path string) string
}

// ServiceParams wires the QR generation service.
type ServiceParams struct {
	Config   config.PaywayConfig
	App      config.AppConfig
	Repo     Repository
	Client   gatewayClient
	Signer   *Signer
	Resolver callbackResolver
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service builds signed KHQR purchase requests and relays the gateway's QR
// payload back to the caller.
type Service struct {
	cfg      config.PaywayConfig
	app      config.AppConfig
	repo     Repository
	client   gatewayClient
	signer   *Signer
	resolver callbackResolver
	log      *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payway repo required")
	}
	if params.Client == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "gateway client required")
	}
	if params.Signer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "signer required")
	}
	if params.Resolver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "callback resolver required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		cfg:      params.Config,
		app:      params.App,
		repo:     params.Repo,
		client:   params.Client,
		signer:   params.Signer,
		resolver: params.Resolver,
		log:      params.Logger,
		now:      now,
	}, nil
}

// GenerateQRInput carries the payment being collected plus optional payer
// overrides. Request is only used for tunnel-host detection when resolving
// the callback URL in dev.
type GenerateQRInput struct {
	Payment  *models.Payment
	Customer CustomerInfo
	Request  *http.Request
}

// GenerateQR runs the full KHQR flow: upsert the gateway transaction, sign
// and send the purchase request, persist the QR payload. Callers have
// already verified the payment is not settled. Failures never surface as
// errors; they come back as a failed QRResult so the HTTP tier can render
// them uniformly, and the payment row itself is never touched here.
func (s *Service) GenerateQR(ctx context.Context, input GenerateQRInput) *QRResult {
	payment := input.Payment
	ctx = s.log.WithPaymentCode(ctx, payment.PaymentCode)

	now := s.now()
	expiresAt := now.Add(s.cfg.QRExpiry)
	txn, err := s.repo.UpsertTransactionByPayment(ctx, &models.PaywayTransaction{
		PaymentID: payment.ID,
		TranID:    payment.PaymentCode,
		Amount:    payment.Amount,
		Status:    enums.TransactionStatusPending,
		ExpiresAt: &expiresAt,
	})
	if err != nil {
		s.log.Error(ctx, "upsert payway transaction", err)
		return s.failedResult(payment, "could not prepare gateway transaction")
	}
	ctx = s.log.WithTranID(ctx, txn.TranID)

	customer := s.customerWithDefaults(input.Customer, payment.Student)
	amount := payment.Amount.StringFixed(2)
	reqTime := strconv.FormatInt(now.Unix(), 10)

	items := encodeItems([]lineItem{{
		Name:     itemName(payment),
		Price:    amount,
		Quantity: 1,
	}})

	returnURL := s.resolver.Resolve(ctx, input.Request, s.cfg.WebhookPath)
	continueURL := s.app.BaseURL + s.cfg.ContinueSuccessPath
	deeplink := deeplinkPayload{
		AndroidScheme: continueURL,
		IOSScheme:     continueURL,
	}.encode()
	params := returnParams{
		TransactionUUID: txn.ID.String(),
		PaymentUUID:     payment.ID.String(),
	}.encode()

	hash := s.signer.Sign(PurchaseHashFields{
		ReqTime:            reqTime,
		MerchantID:         s.cfg.MerchantID,
		TranID:             txn.TranID,
		Amount:             amount,
		Items:              items,
		Shipping:           "0",
		FirstName:          customer.FirstName,
		LastName:           customer.LastName,
		Email:              customer.Email,
		Phone:              customer.Phone,
		PaymentOption:      s.cfg.PaymentOption,
		ReturnURL:          returnURL,
		ContinueSuccessURL: continueURL,
		ReturnDeeplink:     deeplink,
		ReturnParams:       params,
	}.Ordered())

	form := url.Values{}
	form.Set("req_time", reqTime)
	form.Set("merchant_id", s.cfg.MerchantID)
	form.Set("tran_id", txn.TranID)
	form.Set("amount", amount)
	form.Set("items", items)
	form.Set("shipping", "0")
	form.Set("firstname", customer.FirstName)
	form.Set("lastname", customer.LastName)
	form.Set("email", customer.Email)
	form.Set("phone", customer.Phone)
	form.Set("payment_option", s.cfg.PaymentOption)
	form.Set("type", purchaseType)
	form.Set("return_url", returnURL)
	form.Set("continue_success_url", continueURL)
	form.Set("return_deeplink", deeplink)
	form.Set("currency", currencyUSD)
	form.Set("custom_fields", "")
	form.Set("return_params", params)
	form.Set("hash", hash)

	resp, err := s.client.SendPurchase(ctx, form)
	if err != nil {
		s.log.Error(ctx, "payway purchase call failed", err)
		return s.failedResult(payment, "payment gateway is unavailable, please try again")
	}

	if !resp.HasQRData() {
		// The gateway answered without erroring, it just sent nothing to
		// scan. Transaction stays pending; the raw body goes to the logs
		// for the operator to chase.
		s.log.Warn(s.log.WithField(ctx, "gateway_response", string(resp.Raw)),
			"payway purchase returned no qr data")
		return &QRResult{
			Success:       true,
			TransactionID: txn.ID,
			TranID:        txn.TranID,
			Amount:        txn.Amount,
			ExpiresAt:     txn.ExpiresAt,
			PaymentCode:   payment.PaymentCode,
			Message:       noQRDataMessage(resp),
		}
	}

	txn.Status = enums.TransactionStatusProcessing
	if resp.QRString != "" {
		txn.QRString = &resp.QRString
	}
	if resp.QRImage != "" {
		txn.QRURL = &resp.QRImage
	}
	if resp.Deeplink != "" {
		txn.Deeplink = &resp.Deeplink
	}
	if err := s.repo.UpdateTransaction(ctx, txn); err != nil {
		s.log.Error(ctx, "persist qr payload", err)
		return s.failedResult(payment, "could not persist gateway response")
	}

	s.log.Info(ctx, "khqr generated")
	return &QRResult{
		Success:       true,
		TransactionID: txn.ID,
		TranID:        txn.TranID,
		Amount:        txn.Amount,
		QRString:      txn.QRString,
		QRImageURL:    txn.QRURL,
		Deeplink:      txn.Deeplink,
		ExpiresAt:     txn.ExpiresAt,
		PaymentCode:   payment.PaymentCode,
	}
}

// CheckTransaction asks PayWay for the authoritative state of a gateway
// transaction. Read-only; settlement still only happens via pushbacks.
func (s *Service) CheckTransaction(ctx context.Context, tranID string) (*GatewayResponse, error) {
	if tranID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tran_id is required")
	}
	reqTime := strconv.FormatInt(s.now().Unix(), 10)
	hash := s.signer.Sign(StatusCheckHashFields{
		ReqTime:    reqTime,
		MerchantID: s.cfg.MerchantID,
		TranID:     tranID,
	}.Ordered())

	form := url.Values{}
	form.Set("req_time", reqTime)
	form.Set("merchant_id", s.cfg.MerchantID)
	form.Set("tran_id", tranID)
	form.Set("hash", hash)

	return s.client.CheckStatus(ctx, form)
}

func (s *Service) customerWithDefaults(customer CustomerInfo, student *models.Student) CustomerInfo {
	if student == nil {
		return customer
	}
	if customer.FirstName == "" {
		customer.FirstName = student.FirstName
	}
	if customer.LastName == "" {
		customer.LastName = student.LastName
	}
	if customer.Phone == "" && student.Phone != nil {
		customer.Phone = *student.Phone
	}
	return customer
}

func noQRDataMessage(resp *GatewayResponse) string {
	if resp.Status != nil && resp.Status.Code != "" {
		return fmt.Sprintf("gateway returned no QR data (status %s)", resp.Status.Code)
	}
	return "gateway returned no QR data"
}

func (s *Service) failedResult(payment *models.Payment, message string) *QRResult {
	return &QRResult{
		Success:     false,
		Amount:      payment.Amount,
		PaymentCode: payment.PaymentCode,
		Message:     message,
	}
}

func itemName(payment *models.Payment) string {
	if payment.Description != nil && *payment.Description != "" {
		return *payment.Description
	}
	return "Payment for " + payment.PaymentCode
}
