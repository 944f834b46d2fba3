package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/apiclient"
	"github.com/temirov/billdesk/internal/auth"
	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/payments"
	"github.com/temirov/billdesk/internal/scraper"
)

const (
	requestBodyFieldNameConstant = "body"
	requestFailedMessageConstant = "request failed"
	logFieldErrorConstant        = "error"
)

type errorResponse struct {
	Message string `json:"message"`
}

// statusForError maps domain errors onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case faults.IsInvalidInput(err):
		return http.StatusBadRequest
	case errors.Is(err, faults.ErrUnauthorized), errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNoRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, faults.ErrForbidden):
		return http.StatusForbidden
	case faults.IsNotFound(err):
		return http.StatusNotFound
	case faults.IsPreconditionFailed(err):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// carriesRemoteMessage reports whether err holds text written by an external provider rather than
// by the database or the runtime.
func carriesRemoteMessage(err error) bool {
	var providerError deploy.ProviderError
	var statusError apiclient.StatusError
	var processorError payments.ProcessorError
	var fetchError scraper.FetchError
	return errors.As(err, &providerError) ||
		errors.As(err, &statusError) ||
		errors.As(err, &processorError) ||
		errors.As(err, &fetchError)
}

func (server *Server) abortWithError(requestContext *gin.Context, err error) {
	statusCode := statusForError(err)
	message := err.Error()
	if statusCode >= http.StatusInternalServerError {
		server.logger.Error(requestFailedMessageConstant, zap.String(logFieldPathConstant, requestContext.Request.URL.Path), zap.String(logFieldErrorConstant, message))
		if !carriesRemoteMessage(err) {
			message = http.StatusText(statusCode)
		}
	}
	requestContext.AbortWithStatusJSON(statusCode, errorResponse{Message: message})
}

// bindJSON decodes the request body, reporting malformed JSON as invalid input.
func (server *Server) bindJSON(requestContext *gin.Context, target any) bool {
	if bindError := requestContext.ShouldBindJSON(target); bindError != nil {
		server.abortWithError(requestContext, faults.InvalidInputError{FieldName: requestBodyFieldNameConstant, Message: bindError.Error()})
		return false
	}
	return true
}
