package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sokpheng-dev/salapay-backend/internal/payway"
	"github.com/sokpheng-dev/salapay-backend/pkg/config"
	"github.com/sokpheng-dev/salapay-backend/pkg/logger"
)

const maxPushbackBody = 1 << 20

// statusCodeUnknown classifies deliveries whose status field is missing or
// unparsable as failures rather than successes.
const statusCodeUnknown = -1

type pushbackProcessor interface {
	HandlePushback(ctx context.Context, pushback *payway.Pushback) error
}

// PaywayWebhook ingests gateway pushbacks. The response contract is fixed:
// PayWay expects the literal {"status":"success"} body and treats anything
// else as a delivery failure to retry.
func PaywayWebhook(processor pushbackProcessor, payCfg config.PaywayConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if processor == nil {
			logg.Error(ctx, "pushback processor unavailable", nil)
			writeAck(w, http.StatusInternalServerError)
			return
		}

		body, readErr := io.ReadAll(io.LimitReader(r.Body, maxPushbackBody))
		if readErr != nil {
			logg.Error(ctx, "read pushback body", readErr)
		}

		pushback, err := decodePushback(r.Header.Get("Content-Type"), body)
		if err != nil {
			// The audit record is unconditional: a delivery we cannot
			// decode still gets written, carrying only its raw body.
			logg.Error(ctx, "parse pushback request", err)
			pushback = rawPushback(body)
		}

		err = processor.HandlePushback(ctx, pushback)
		switch {
		case err == nil,
			err == payway.ErrMalformedReturnParams,
			err == payway.ErrUnknownTransaction:
			// Recorded; retrying the same delivery cannot do better.
			writeAck(w, http.StatusOK)
		default:
			if payCfg.AckAlwaysSuccess {
				writeAck(w, http.StatusOK)
				return
			}
			writeAck(w, http.StatusInternalServerError)
		}
	}
}

func decodePushback(contentType string, body []byte) (*payway.Pushback, error) {
	if strings.Contains(contentType, "application/json") {
		return parseJSONPushback(body)
	}
	return parseFormPushback(body)
}

// rawPushback wraps a body we could not decode so the delivery still leaves
// an audit record. The unknown status keeps it off the success path.
func rawPushback(body []byte) *payway.Pushback {
	raw, err := json.Marshal(map[string]string{"raw_body": string(body)})
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	return &payway.Pushback{Status: statusCodeUnknown, Raw: raw}
}

type pushbackBody struct {
	TranID        string      `json:"tran_id"`
	APV           string      `json:"apv"`
	Status        json.Number `json:"status"`
	StatusMessage string      `json:"status_message"`
	ReturnParams  string      `json:"return_params"`
}

func parseJSONPushback(body []byte) (*payway.Pushback, error) {
	var parsed pushbackBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &payway.Pushback{
		TranID:        parsed.TranID,
		APV:           parsed.APV,
		Status:        parseStatusCode(parsed.Status.String()),
		StatusMessage: parsed.StatusMessage,
		ReturnParams:  parsed.ReturnParams,
		Raw:           json.RawMessage(body),
	}, nil
}

// parseFormPushback handles PayWay's form-encoded delivery. The full field
// set is re-encoded as JSON so the audit record keeps everything, not just
// the fields we recognize.
func parseFormPushback(body []byte) (*payway.Pushback, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}

	fields := map[string]string{}
	for key := range values {
		fields[key] = values.Get(key)
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	return &payway.Pushback{
		TranID:        values.Get("tran_id"),
		APV:           values.Get("apv"),
		Status:        parseStatusCode(values.Get("status")),
		StatusMessage: values.Get("status_message"),
		ReturnParams:  values.Get("return_params"),
		Raw:           raw,
	}, nil
}

func parseStatusCode(value string) int {
	code, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return statusCodeUnknown
	}
	return code
}

func writeAck(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"status":"success"}`))
}
