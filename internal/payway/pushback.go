package payway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokpheng-dev/salapay-backend/pkg/db/models"
	"github.com/sokpheng-dev/salapay-backend/pkg/enums"
	pkgerrors "github.com/sokpheng-dev/salapay-backend/pkg/errors"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
	"github.com/sokpheng-dev/salapay-backend/pkg/metrics"
)

// Sentinel outcomes of pushback processing. The HTTP tier acknowledges both
// of these; they only decide logging and metrics.
var (
	ErrMalformedReturnParams = pkgerrors.New(pkgerrors.CodeValidation, "malformed return parameters")
	ErrUnknownTransaction    = pkgerrors.New(pkgerrors.CodeNotFound, "unknown transaction")
)

// Pushback is one inbound webhook delivery, already parsed off the wire by
// the controller. Raw holds the full body as received.
type Pushback struct {
	TranID        string
	APV           string
	Status        int
	StatusMessage string
	ReturnParams  string
	Raw           json.RawMessage
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProcessorParams wires the pushback processor.
type ProcessorParams struct {
	Repo     Repository
	TxRunner txRunner
	Metrics  *metrics.PaywayMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

// Processor settles payments off inbound PayWay pushbacks.
type Processor struct {
	repo     Repository
	txRunner txRunner
	metrics  *metrics.PaywayMetrics
	log      *logger.Logger
	now      func() time.Time
}

func NewProcessor(params ProcessorParams) (*Processor, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payway repo required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Processor{
		repo:     params.Repo,
		txRunner: params.TxRunner,
		metrics:  params.Metrics,
		log:      params.Logger,
		now:      now,
	}, nil
}

// HandlePushback records the delivery, correlates it back to a transaction
// and applies the settlement. The pushback row is committed before any
// validation so every delivery attempt survives for audit, including ones we
// cannot decode. Redelivery is harmless: the success path writes the same
// values again under a row lock.
func (p *Processor) HandlePushback(ctx context.Context, pushback *Pushback) error {
	if pushback == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "pushback payload required")
	}
	ctx = p.log.WithTranID(ctx, pushback.TranID)

	record := p.buildRecord(pushback)
	if err := p.repo.CreatePushback(ctx, record); err != nil {
		p.metrics.IncPushback("error")
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pushback record")
	}

	params, err := decodeReturnParams(pushback.ReturnParams)
	if err != nil || params.TransactionUUID == "" || params.PaymentUUID == "" {
		p.metrics.IncPushback("malformed")
		p.log.Warn(ctx, "pushback return params undecodable")
		return ErrMalformedReturnParams
	}
	transactionID, err := uuid.Parse(params.TransactionUUID)
	if err != nil {
		p.metrics.IncPushback("malformed")
		return ErrMalformedReturnParams
	}
	paymentID, err := uuid.Parse(params.PaymentUUID)
	if err != nil {
		p.metrics.IncPushback("malformed")
		return ErrMalformedReturnParams
	}

	applyErr := p.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)

		txn, err := repo.FindTransactionByIDForUpdate(ctx, transactionID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payway transaction")
		}
		if txn == nil {
			return ErrUnknownTransaction
		}
		payment, err := repo.FindPaymentByID(ctx, paymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if payment == nil {
			return ErrUnknownTransaction
		}

		if record.IsSuccessful() {
			return p.applySuccess(ctx, repo, txn, payment, record)
		}
		return p.applyFailure(ctx, repo, txn, record)
	})

	switch {
	case applyErr == nil:
		if record.IsSuccessful() {
			p.metrics.IncPushback("applied_success")
		} else {
			p.metrics.IncPushback("applied_failure")
		}
		return nil
	case applyErr == ErrUnknownTransaction:
		p.metrics.IncPushback("unknown")
		p.log.Warn(ctx, "pushback references unknown transaction or payment")
		return applyErr
	default:
		p.metrics.IncPushback("error")
		p.log.Error(ctx, "apply pushback", applyErr)
		return applyErr
	}
}

func (p *Processor) buildRecord(pushback *Pushback) *models.PaywayPushback {
	record := &models.PaywayPushback{
		TranID:     pushback.TranID,
		StatusCode: pushback.Status,
		Data:       pushback.Raw,
	}
	if len(record.Data) == 0 {
		record.Data = json.RawMessage("{}")
	}
	if pushback.APV != "" {
		record.APV = &pushback.APV
	}
	if pushback.StatusMessage != "" {
		record.StatusMessage = &pushback.StatusMessage
	}
	if pushback.ReturnParams != "" {
		record.ReturnParams = &pushback.ReturnParams
	}
	return record
}

func (p *Processor) applySuccess(ctx context.Context, repo Repository, txn *models.PaywayTransaction, payment *models.Payment, record *models.PaywayPushback) error {
	now := p.now()

	txn.Status = enums.TransactionStatusSuccess
	txn.APV = record.APV
	txn.PushbackID = &record.ID
	if err := repo.UpdateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payway transaction")
	}

	method := enums.PaymentMethodKHQR
	payment.Status = enums.PaymentStatusPaid
	payment.PaidAt = &now
	payment.PaymentDate = &now
	payment.PaymentMethod = &method
	payment.KHQRReference = record.APV
	if err := repo.UpdatePayment(ctx, payment); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment paid")
	}

	p.log.Info(p.log.WithPaymentCode(ctx, payment.PaymentCode), "payment settled via pushback")
	return nil
}

// applyFailure marks only the gateway attempt; the payment stays pending so
// the payer can request a fresh QR and try again.
func (p *Processor) applyFailure(ctx context.Context, repo Repository, txn *models.PaywayTransaction, record *models.PaywayPushback) error {
	txn.Status = enums.TransactionStatusFailed
	txn.PushbackID = &record.ID
	if err := repo.UpdateTransaction(ctx, txn); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payway transaction failed")
	}
	p.log.Info(ctx, "pushback reported gateway failure")
	return nil
}
