package payments

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	processorErrorTemplateConstant = "stripe: %s (%d)"
	paymentFieldNameConstant       = "payment"
	stripeResourceNameConstant     = "stripe resource"
)

// ProcessorError reports a Stripe failure that is not the caller's fault.
type ProcessorError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error describes the Stripe failure.
func (processorError ProcessorError) Error() string {
	return fmt.Sprintf(processorErrorTemplateConstant, processorError.Message, processorError.StatusCode)
}

// wrapStripeError keeps card and request errors as invalid input so the API answers 400.
func wrapStripeError(err error) error {
	var stripeError *stripe.Error
	if !errors.As(err, &stripeError) {
		return err
	}
	switch stripeError.HTTPStatusCode {
	case http.StatusBadRequest, http.StatusPaymentRequired:
		fieldName := stripeError.Param
		if len(fieldName) == 0 {
			fieldName = paymentFieldNameConstant
		}
		return faults.InvalidInputError{FieldName: fieldName, Message: stripeError.Msg}
	case http.StatusNotFound:
		return faults.NotFoundError{Resource: stripeResourceNameConstant, Identifier: stripeError.Param}
	default:
		return ProcessorError{StatusCode: stripeError.HTTPStatusCode, Code: string(stripeError.Code), Message: stripeError.Msg}
	}
}
