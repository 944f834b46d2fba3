package payments

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
)

const (
	stripeNotConfiguredMessageConstant = "stripe secret key is not configured"
	cardPaymentMethodTypeConstant      = "card"
	billdeskCustomerMetadataConstant   = "billdesk_customer_id"
	paymentMethodIDFieldNameConstant   = "paymentMethodId"
	customerIDFieldNameConstant        = "customerId"
	stripeCustomerCreatedConstant      = "stripe customer created"
	paymentMethodDetachedConstant      = "payment method detached"
	logFieldCustomerIDConstant         = "customer_id"
	logFieldStripeCustomerIDConstant   = "stripe_customer_id"
	logFieldPaymentMethodIDConstant    = "payment_method_id"
)

// ErrStripeNotConfigured indicates a gateway constructed without a secret key.
var ErrStripeNotConfigured = errors.New(stripeNotConfiguredMessageConstant)

// Store is the slice of the billing service the payments package reads and writes.
type Store interface {
	GetCustomer(executionContext context.Context, customerID string) (billing.Customer, error)
	SaveCustomer(executionContext context.Context, customer billing.Customer) (billing.Customer, error)
	FindCustomerByStripeID(executionContext context.Context, stripeCustomerID string) (billing.Customer, error)
	SavePaymentMethod(executionContext context.Context, paymentMethod billing.PaymentMethod) (billing.PaymentMethod, error)
	RemovePaymentMethod(executionContext context.Context, stripePaymentMethodID string) error
	MarkInvoicePaid(executionContext context.Context, invoiceID string) (billing.Invoice, error)
}

// Configuration carries the Stripe credentials.
type Configuration struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
}

// SetupIntent is the client-side handle for collecting a payment method.
type SetupIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// Gateway performs Stripe API calls on behalf of billdesk customers.
type Gateway struct {
	logger         *zap.Logger
	api            *client.API
	store          Store
	publishableKey string
}

// NewGateway constructs a Gateway. A nil backends value uses Stripe's public API.
func NewGateway(logger *zap.Logger, configuration Configuration, store Store, backends *stripe.Backends) (*Gateway, error) {
	if len(strings.TrimSpace(configuration.SecretKey)) == 0 {
		return nil, ErrStripeNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		logger:         logger,
		api:            client.New(configuration.SecretKey, backends),
		store:          store,
		publishableKey: configuration.PublishableKey,
	}, nil
}

// PublishableKey returns the key the browser uses to initialise Stripe.js.
func (gateway *Gateway) PublishableKey() string {
	return gateway.publishableKey
}

// EnsureCustomer returns the customer, creating and recording a Stripe customer when none is linked yet.
func (gateway *Gateway) EnsureCustomer(executionContext context.Context, customerID string) (billing.Customer, error) {
	if len(strings.TrimSpace(customerID)) == 0 {
		return billing.Customer{}, faults.Required(customerIDFieldNameConstant)
	}
	customer, lookupError := gateway.store.GetCustomer(executionContext, customerID)
	if lookupError != nil {
		return billing.Customer{}, lookupError
	}
	if len(customer.StripeCustomerID) > 0 {
		return customer, nil
	}

	customerParams := &stripe.CustomerParams{Name: stripe.String(customer.Name)}
	customerParams.Context = executionContext
	if len(customer.Email) > 0 {
		customerParams.Email = stripe.String(customer.Email)
	}
	customerParams.AddMetadata(billdeskCustomerMetadataConstant, customer.ID)
	stripeCustomer, createError := gateway.api.Customers.New(customerParams)
	if createError != nil {
		return billing.Customer{}, wrapStripeError(createError)
	}

	customer.StripeCustomerID = stripeCustomer.ID
	savedCustomer, saveError := gateway.store.SaveCustomer(executionContext, customer)
	if saveError != nil {
		return billing.Customer{}, saveError
	}
	gateway.logger.Info(stripeCustomerCreatedConstant, zap.String(logFieldCustomerIDConstant, customer.ID), zap.String(logFieldStripeCustomerIDConstant, stripeCustomer.ID))
	return savedCustomer, nil
}

// CreateSetupIntent starts card collection for the customer.
func (gateway *Gateway) CreateSetupIntent(executionContext context.Context, customerID string) (SetupIntent, error) {
	customer, customerError := gateway.EnsureCustomer(executionContext, customerID)
	if customerError != nil {
		return SetupIntent{}, customerError
	}
	intentParams := &stripe.SetupIntentParams{
		Customer:           stripe.String(customer.StripeCustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{cardPaymentMethodTypeConstant}),
	}
	intentParams.Context = executionContext
	intentParams.AddMetadata(billdeskCustomerMetadataConstant, customer.ID)
	intent, intentError := gateway.api.SetupIntents.New(intentParams)
	if intentError != nil {
		return SetupIntent{}, wrapStripeError(intentError)
	}
	return SetupIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// SyncPaymentMethods lists the customer's cards in Stripe and records each of them locally.
func (gateway *Gateway) SyncPaymentMethods(executionContext context.Context, customerID string) ([]billing.PaymentMethod, error) {
	customer, lookupError := gateway.store.GetCustomer(executionContext, customerID)
	if lookupError != nil {
		return nil, lookupError
	}
	if len(customer.StripeCustomerID) == 0 {
		return []billing.PaymentMethod{}, nil
	}
	listParams := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customer.StripeCustomerID),
		Type:     stripe.String(cardPaymentMethodTypeConstant),
	}
	listParams.Context = executionContext
	iterator := gateway.api.PaymentMethods.List(listParams)
	paymentMethods := []billing.PaymentMethod{}
	for iterator.Next() {
		savedMethod, saveError := gateway.store.SavePaymentMethod(executionContext, convertPaymentMethod(customer.ID, iterator.PaymentMethod()))
		if saveError != nil {
			return nil, saveError
		}
		paymentMethods = append(paymentMethods, savedMethod)
	}
	if iterationError := iterator.Err(); iterationError != nil {
		return nil, wrapStripeError(iterationError)
	}
	return paymentMethods, nil
}

// DetachPaymentMethod detaches the card in Stripe and forgets it locally.
func (gateway *Gateway) DetachPaymentMethod(executionContext context.Context, stripePaymentMethodID string) error {
	if len(strings.TrimSpace(stripePaymentMethodID)) == 0 {
		return faults.Required(paymentMethodIDFieldNameConstant)
	}
	detachParams := &stripe.PaymentMethodDetachParams{}
	detachParams.Context = executionContext
	if _, detachError := gateway.api.PaymentMethods.Detach(stripePaymentMethodID, detachParams); detachError != nil {
		return wrapStripeError(detachError)
	}
	if removeError := gateway.store.RemovePaymentMethod(executionContext, stripePaymentMethodID); removeError != nil {
		return removeError
	}
	gateway.logger.Info(paymentMethodDetachedConstant, zap.String(logFieldPaymentMethodIDConstant, stripePaymentMethodID))
	return nil
}

// convertPaymentMethod maps a Stripe card onto the local record.
func convertPaymentMethod(customerID string, paymentMethod *stripe.PaymentMethod) billing.PaymentMethod {
	converted := billing.PaymentMethod{CustomerID: customerID, StripePaymentMethodID: paymentMethod.ID}
	if paymentMethod.Card != nil {
		converted.Brand = string(paymentMethod.Card.Brand)
		converted.Last4 = paymentMethod.Card.Last4
		converted.ExpMonth = int(paymentMethod.Card.ExpMonth)
		converted.ExpYear = int(paymentMethod.Card.ExpYear)
	}
	return converted
}
