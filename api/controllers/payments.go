package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sokpheng-dev/salapay-backend/api/responses"
	"github.com/sokpheng-dev/salapay-backend/api/validators"
	"github.com/sokpheng-dev/salapay-backend/internal/payments"
	"github.com/sokpheng-dev/salapay-backend/internal/payway"
	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
	pkgerrors "github.com/sokpheng-dev/salapay-backend/pkg/errors"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
)

type paymentsService interface {
	Create(ctx context.Context, input payments.CreatePaymentInput) (*models.Payment, error)
	FindForCollection(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetStatus(ctx context.Context, id uuid.UUID) (*payments.PaymentStatus, error)
}

type khqrService interface {
	GenerateQR(ctx context.Context, input payway.GenerateQRInput) *payway.QRResult
	CheckTransaction(ctx context.Context, tranID string) (*payway.GatewayResponse, error)
}

type createPaymentRequest struct {
	StudentID   *uuid.UUID      `json:"student_id"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Description string          `json:"description" validate:"max=255"`
	DueDate     time.Time       `json:"due_date" validate:"required"`
}

type paymentResponse struct {
	ID          uuid.UUID       `json:"id"`
	PaymentCode string          `json:"payment_code"`
	StudentID   *uuid.UUID      `json:"student_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Description *string         `json:"description,omitempty"`
	Status      string          `json:"status"`
	DueDate     time.Time       `json:"due_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CreatePayment issues a new receivable.
func CreatePayment(svc paymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var body createPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.Create(r.Context(), payments.CreatePaymentInput{
			StudentID:   body.StudentID,
			Amount:      body.Amount,
			Description: body.Description,
			DueDate:     body.DueDate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentResponse{
			ID:          payment.ID,
			PaymentCode: payment.PaymentCode,
			StudentID:   payment.StudentID,
			Amount:      payment.Amount,
			Description: payment.Description,
			Status:      payment.Status.String(),
			DueDate:     payment.DueDate,
			CreatedAt:   payment.CreatedAt,
		})
	}
}

// PaymentStatus returns the polling view for a payment.
func PaymentStatus(svc paymentsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		paymentID, err := parsePaymentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.GetStatus(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

type generateKHQRRequest struct {
	FirstName string `json:"first_name" validate:"max=100"`
	LastName  string `json:"last_name" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=30"`
}

// GenerateKHQR starts (or retries) KHQR collection for a payment.
func GenerateKHQR(paymentsSvc paymentsService, khqrSvc khqrService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if paymentsSvc == nil || khqrSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment services unavailable"))
			return
		}

		paymentID, err := parsePaymentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body generateKHQRRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		payment, err := paymentsSvc.FindForCollection(r.Context(), paymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result := khqrSvc.GenerateQR(r.Context(), payway.GenerateQRInput{
			Payment: payment,
			Customer: payway.CustomerInfo{
				FirstName: body.FirstName,
				LastName:  body.LastName,
				Email:     body.Email,
				Phone:     body.Phone,
			},
			Request: r,
		})
		responses.WriteSuccess(w, result)
	}
}

// CheckPaywayTransaction proxies a signed status check to the gateway.
func CheckPaywayTransaction(khqrSvc khqrService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if khqrSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "gateway service unavailable"))
			return
		}

		tranID := chi.URLParam(r, "tranID")
		resp, err := khqrSvc.CheckTransaction(r.Context(), tranID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp.Raw)
	}
}

func parsePaymentID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "paymentID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment id")
	}
	return id, nil
}
