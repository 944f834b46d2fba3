package payments

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

// Handled Stripe event types.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventInvoicePaid            = "invoice.paid"
	EventPaymentMethodAttached  = "payment_method.attached"
	EventPaymentMethodDetached  = "payment_method.detached"
)

const (
	// SignatureHeader carries the webhook signature.
	SignatureHeader = "Stripe-Signature"

	invoiceIDMetadataKeyConstant     = "invoice_id"
	signatureRequiredMessageConstant = "header is required"
	webhookOperationNameConstant     = "stripe.webhook"
	webhookSecretMissingConstant     = "webhook secret is not configured"
	eventReceivedMessageConstant     = "stripe event received"
	eventIgnoredMessageConstant      = "stripe event ignored"
	missingEventDataMessageConstant  = "event has no data object"
	logFieldEventIDConstant          = "event_id"
	logFieldEventTypeConstant        = "event_type"
	logFieldReasonConstant           = "reason"
	reasonNoInvoiceMetadataConstant  = "no invoice_id metadata"
	reasonUnknownInvoiceConstant     = "invoice not found"
	reasonNoCustomerConstant         = "payment method has no customer"
	reasonUnknownCustomerConstant    = "customer not linked"
	reasonUnhandledTypeConstant      = "unhandled event type"
)

// WebhookProcessor verifies Stripe webhook deliveries and applies them to billing data.
type WebhookProcessor struct {
	logger *zap.Logger
	secret string
	store  Store
}

// NewWebhookProcessor constructs a WebhookProcessor.
func NewWebhookProcessor(logger *zap.Logger, secret string, store Store) *WebhookProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookProcessor{logger: logger, secret: secret, store: store}
}

// Process verifies signatureHeader over payload and applies the event. Unknown event types are accepted.
// A missing or invalid signature yields faults.InvalidInputError.
func (processor *WebhookProcessor) Process(executionContext context.Context, payload []byte, signatureHeader string) (stripe.Event, error) {
	if len(strings.TrimSpace(signatureHeader)) == 0 {
		return stripe.Event{}, faults.InvalidInputError{FieldName: SignatureHeader, Message: signatureRequiredMessageConstant}
	}
	if len(processor.secret) == 0 {
		return stripe.Event{}, faults.PreconditionFailedError{Operation: webhookOperationNameConstant, Message: webhookSecretMissingConstant}
	}
	event, verifyError := webhook.ConstructEventWithOptions(payload, signatureHeader, processor.secret, webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if verifyError != nil {
		return stripe.Event{}, faults.InvalidInputError{FieldName: SignatureHeader, Message: verifyError.Error()}
	}

	eventType := string(event.Type)
	processor.logger.Info(eventReceivedMessageConstant, zap.String(logFieldEventIDConstant, event.ID), zap.String(logFieldEventTypeConstant, eventType))
	var applyError error
	switch eventType {
	case EventPaymentIntentSucceeded:
		var paymentIntent stripe.PaymentIntent
		if applyError = decodeEventObject(event, &paymentIntent); applyError == nil {
			applyError = processor.markInvoicePaid(executionContext, event, paymentIntent.Metadata)
		}
	case EventInvoicePaid:
		var invoice stripe.Invoice
		if applyError = decodeEventObject(event, &invoice); applyError == nil {
			applyError = processor.markInvoicePaid(executionContext, event, invoice.Metadata)
		}
	case EventPaymentMethodAttached:
		var paymentMethod stripe.PaymentMethod
		if applyError = decodeEventObject(event, &paymentMethod); applyError == nil {
			applyError = processor.attachPaymentMethod(executionContext, event, &paymentMethod)
		}
	case EventPaymentMethodDetached:
		var paymentMethod stripe.PaymentMethod
		if applyError = decodeEventObject(event, &paymentMethod); applyError == nil {
			applyError = processor.store.RemovePaymentMethod(executionContext, paymentMethod.ID)
		}
	default:
		processor.ignore(event, reasonUnhandledTypeConstant)
	}
	return event, applyError
}

func (processor *WebhookProcessor) markInvoicePaid(executionContext context.Context, event stripe.Event, metadata map[string]string) error {
	invoiceID := metadata[invoiceIDMetadataKeyConstant]
	if len(invoiceID) == 0 {
		processor.ignore(event, reasonNoInvoiceMetadataConstant)
		return nil
	}
	_, markError := processor.store.MarkInvoicePaid(executionContext, invoiceID)
	if faults.IsNotFound(markError) {
		processor.ignore(event, reasonUnknownInvoiceConstant)
		return nil
	}
	return markError
}

func (processor *WebhookProcessor) attachPaymentMethod(executionContext context.Context, event stripe.Event, paymentMethod *stripe.PaymentMethod) error {
	if paymentMethod.Customer == nil || len(paymentMethod.Customer.ID) == 0 {
		processor.ignore(event, reasonNoCustomerConstant)
		return nil
	}
	customer, lookupError := processor.store.FindCustomerByStripeID(executionContext, paymentMethod.Customer.ID)
	if faults.IsNotFound(lookupError) {
		processor.ignore(event, reasonUnknownCustomerConstant)
		return nil
	}
	if lookupError != nil {
		return lookupError
	}
	_, saveError := processor.store.SavePaymentMethod(executionContext, convertPaymentMethod(customer.ID, paymentMethod))
	return saveError
}

func (processor *WebhookProcessor) ignore(event stripe.Event, reason string) {
	processor.logger.Info(eventIgnoredMessageConstant, zap.String(logFieldEventIDConstant, event.ID), zap.String(logFieldEventTypeConstant, string(event.Type)), zap.String(logFieldReasonConstant, reason))
}

func decodeEventObject(event stripe.Event, target any) error {
	if event.Data == nil {
		return faults.InvalidInputError{FieldName: string(event.Type), Message: missingEventDataMessageConstant}
	}
	if decodeError := json.Unmarshal(event.Data.Raw, target); decodeError != nil {
		return faults.InvalidInputError{FieldName: string(event.Type), Message: decodeError.Error()}
	}
	return nil
}
