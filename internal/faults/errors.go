// Package faults defines the error kinds shared by services and the HTTP layer.
//
// Services return these values (possibly wrapped); the HTTP layer inspects them
// with errors.As and errors.Is to pick a response status.
package faults

import (
	"errors"
	"fmt"
)

const (
	invalidInputErrorTemplateConstant         = "%s: %s"
	preconditionFailedErrorTemplateConstant   = "%s: %s"
	notFoundErrorTemplateConstant             = "%s %s not found"
	notFoundWithoutIdentifierTemplateConstant = "%s not found"
	requiredValueMessageConstant              = "value required"
	unauthorizedMessageConstant               = "unauthorized"
	forbiddenMessageConstant                  = "forbidden"
)

var (
	// ErrUnauthorized indicates the caller is not authenticated.
	ErrUnauthorized = errors.New(unauthorizedMessageConstant)
	// ErrForbidden indicates the caller lacks the required role.
	ErrForbidden = errors.New(forbiddenMessageConstant)
)

// InvalidInputError surfaces validation issues for operation inputs.
type InvalidInputError struct {
	FieldName string
	Message   string
}

// Error describes the invalid input.
func (inputError InvalidInputError) Error() string {
	return fmt.Sprintf(invalidInputErrorTemplateConstant, inputError.FieldName, inputError.Message)
}

// Required builds an InvalidInputError for a missing field.
func Required(fieldName string) InvalidInputError {
	return InvalidInputError{FieldName: fieldName, Message: requiredValueMessageConstant}
}

// PreconditionFailedError indicates the target is not in a state that allows the operation.
type PreconditionFailedError struct {
	Operation string
	Message   string
}

// Error describes the failed precondition.
func (preconditionError PreconditionFailedError) Error() string {
	return fmt.Sprintf(preconditionFailedErrorTemplateConstant, preconditionError.Operation, preconditionError.Message)
}

// NotFoundError indicates a referenced record does not exist.
type NotFoundError struct {
	Resource   string
	Identifier string
}

// Error describes the missing record.
func (notFoundError NotFoundError) Error() string {
	if len(notFoundError.Identifier) == 0 {
		return fmt.Sprintf(notFoundWithoutIdentifierTemplateConstant, notFoundError.Resource)
	}
	return fmt.Sprintf(notFoundErrorTemplateConstant, notFoundError.Resource, notFoundError.Identifier)
}

// IsInvalidInput reports whether err wraps an InvalidInputError.
func IsInvalidInput(err error) bool {
	var inputError InvalidInputError
	return errors.As(err, &inputError)
}

// IsPreconditionFailed reports whether err wraps a PreconditionFailedError.
func IsPreconditionFailed(err error) bool {
	var preconditionError PreconditionFailedError
	return errors.As(err, &preconditionError)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var notFoundError NotFoundError
	return errors.As(err, &notFoundError)
}
