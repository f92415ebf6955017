// Package handler is the Lambda entry for webhook mode: Telegram pushes
// updates through API Gateway and each invocation carries one update.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"anonword-relay/internal/integrations/telegram"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// Dispatcher handles one inbound message end to end.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *telegram.Message)
}

// Response is the API Gateway proxy response shape.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Handler adapts webhook pushes to the dispatcher.
type Handler struct {
	dispatcher  Dispatcher
	secretToken string
	log         *slog.Logger
}

type Option func(*Handler)

// WithSecretToken enables validation of Telegram's secret-token header, as
// configured on setWebhook.
func WithSecretToken(token string) Option {
	return func(h *Handler) {
		h.secretToken = token
	}
}

// NewHandler creates a Handler around the given dispatcher.
func NewHandler(dispatcher Dispatcher, log *slog.Logger, opts ...Option) (*Handler, error) {
	if dispatcher == nil {
		return nil, errors.New("handler: dispatcher must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{dispatcher: dispatcher, log: log}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle processes one webhook push. It answers 200 for every well-formed
// update, handled or not, so Telegram never redelivers: redelivery of a
// contained failure would double-relay the message.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (Response, error) {
	correlationID := headerValue(event.Headers, "X-Correlation-Id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	if h.secretToken != "" && headerValue(event.Headers, secretTokenHeader) != h.secretToken {
		h.log.Warn("webhook push with bad secret token", "correlation", correlationID)
		return respond(http.StatusUnauthorized, correlationID), nil
	}

	var update telegram.Update
	if err := json.Unmarshal([]byte(event.Body), &update); err != nil {
		h.log.Warn("malformed webhook body", "correlation", correlationID, "err", err)
		return respond(http.StatusBadRequest, correlationID), nil
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return respond(http.StatusOK, correlationID), nil
	}

	// Synchronous on purpose: the runtime may freeze the process as soon as
	// the response is returned.
	h.dispatcher.Dispatch(ctx, msg)

	return respond(http.StatusOK, correlationID), nil
}

func respond(status int, correlationID string) Response {
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":     "application/json",
			"X-Correlation-Id": correlationID,
		},
		Body: `{}`,
	}
}

func headerValue(headers map[string]string, name string) string {
	for key, value := range headers {
		if http.CanonicalHeaderKey(key) == http.CanonicalHeaderKey(name) {
			return value
		}
	}
	return ""
}
