package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout bounds every outbound provider request.
	DefaultTimeout = 30 * time.Second

	contentTypeHeaderConstant               = "Content-Type"
	acceptHeaderConstant                    = "Accept"
	authorizationHeaderConstant             = "Authorization"
	jsonContentTypeConstant                 = "application/json"
	bearerSchemeConstant                    = "Bearer"
	authorizationTemplateConstant           = "%s %s"
	errorBodyLimitBytesConstant             = 64 * 1024
	baseURLRequiredMessageConstant          = "api base url must be provided"
	statusErrorTemplateConstant             = "%s (%d)"
	operationErrorMessageTemplateConstant   = "%s operation failed"
	operationErrorWithCauseTemplateConstant = "%s operation failed: %s"
	responseDecodingErrorTemplateConstant   = "%s response decoding failed: %s"
	payloadEncodingErrorTemplateConstant    = "%s payload encoding failed: %s"
	requestCompletedMessageConstant         = "provider request completed"
	logFieldMethodConstant                  = "method"
	logFieldPathConstant                    = "path"
	logFieldStatusConstant                  = "status"
	logFieldOperationConstant               = "operation"
)

// ErrBaseURLMissing indicates a client constructed without a base URL.
var ErrBaseURLMissing = errors.New(baseURLRequiredMessageConstant)

// StatusError reports a non-2xx response together with the provider's own message.
type StatusError struct {
	StatusCode int
	Message    string
}

// Error describes the provider failure.
func (statusError StatusError) Error() string {
	return fmt.Sprintf(statusErrorTemplateConstant, statusError.Message, statusError.StatusCode)
}

// IsStatus reports whether err carries the given HTTP status code.
func IsStatus(err error, statusCode int) bool {
	var statusError StatusError
	return errors.As(err, &statusError) && statusError.StatusCode == statusCode
}

// OperationError wraps transport failures for a named operation.
type OperationError struct {
	Operation string
	Cause     error
}

// Error describes the operation failure.
func (operationError OperationError) Error() string {
	if operationError.Cause == nil {
		return fmt.Sprintf(operationErrorMessageTemplateConstant, operationError.Operation)
	}
	return fmt.Sprintf(operationErrorWithCauseTemplateConstant, operationError.Operation, operationError.Cause)
}

// Unwrap exposes the underlying cause.
func (operationError OperationError) Unwrap() error {
	return operationError.Cause
}

// ResponseDecodingError indicates a 2xx response whose body could not be decoded.
type ResponseDecodingError struct {
	Operation string
	Cause     error
}

// Error describes the decoding failure.
func (decodingError ResponseDecodingError) Error() string {
	return fmt.Sprintf(responseDecodingErrorTemplateConstant, decodingError.Operation, decodingError.Cause)
}

// Unwrap exposes the underlying JSON error.
func (decodingError ResponseDecodingError) Unwrap() error {
	return decodingError.Cause
}

// PayloadEncodingError indicates a request body that could not be encoded.
type PayloadEncodingError struct {
	Operation string
	Cause     error
}

// Error describes the encoding failure.
func (encodingError PayloadEncodingError) Error() string {
	return fmt.Sprintf(payloadEncodingErrorTemplateConstant, encodingError.Operation, encodingError.Cause)
}

// Unwrap exposes the underlying error.
func (encodingError PayloadEncodingError) Unwrap() error {
	return encodingError.Cause
}

// TokenFunc supplies the credential for each request. It may consult a cache.
type TokenFunc func(executionContext context.Context) (string, error)

// StaticToken returns a TokenFunc that always yields token.
func StaticToken(token string) TokenFunc {
	return func(context.Context) (string, error) { return token, nil }
}

// Configuration describes a JSON API endpoint.
type Configuration struct {
	BaseURL    string
	Token      TokenFunc
	Headers    map[string]string
	HTTPClient *http.Client
}

// Client issues authenticated JSON requests against one provider API.
type Client struct {
	logger        *zap.Logger
	configuration Configuration
}

// NewClient constructs a Client. A nil HTTP client gets DefaultTimeout.
func NewClient(logger *zap.Logger, configuration Configuration) (*Client, error) {
	configuration.BaseURL = strings.TrimRight(strings.TrimSpace(configuration.BaseURL), "/")
	if len(configuration.BaseURL) == 0 {
		return nil, ErrBaseURLMissing
	}
	if configuration.HTTPClient == nil {
		configuration.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{logger: logger, configuration: configuration}, nil
}

// Do sends requestBody (when non-nil) as JSON and decodes a 2xx response into responseBody (when non-nil).
func (client *Client) Do(executionContext context.Context, operation string, method string, path string, requestBody any, responseBody any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encodedBody, encodeError := json.Marshal(requestBody)
		if encodeError != nil {
			return PayloadEncodingError{Operation: operation, Cause: encodeError}
		}
		bodyReader = bytes.NewReader(encodedBody)
	}

	request, requestError := http.NewRequestWithContext(executionContext, method, client.configuration.BaseURL+path, bodyReader)
	if requestError != nil {
		return OperationError{Operation: operation, Cause: requestError}
	}
	request.Header.Set(acceptHeaderConstant, jsonContentTypeConstant)
	if requestBody != nil {
		request.Header.Set(contentTypeHeaderConstant, jsonContentTypeConstant)
	}
	for headerName, headerValue := range client.configuration.Headers {
		request.Header.Set(headerName, headerValue)
	}
	if client.configuration.Token != nil {
		token, tokenError := client.configuration.Token(executionContext)
		if tokenError != nil {
			return OperationError{Operation: operation, Cause: tokenError}
		}
		if len(token) > 0 {
			request.Header.Set(authorizationHeaderConstant, fmt.Sprintf(authorizationTemplateConstant, bearerSchemeConstant, token))
		}
	}

	response, responseError := client.configuration.HTTPClient.Do(request)
	if responseError != nil {
		return OperationError{Operation: operation, Cause: responseError}
	}
	defer response.Body.Close()

	client.logger.Debug(
		requestCompletedMessageConstant,
		zap.String(logFieldOperationConstant, operation),
		zap.String(logFieldMethodConstant, method),
		zap.String(logFieldPathConstant, path),
		zap.Int(logFieldStatusConstant, response.StatusCode),
	)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		errorBody, _ := io.ReadAll(io.LimitReader(response.Body, errorBodyLimitBytesConstant))
		return StatusError{StatusCode: response.StatusCode, Message: ExtractMessage(errorBody, response.Status)}
	}
	if responseBody == nil || response.StatusCode == http.StatusNoContent {
		return nil
	}
	if decodeError := json.NewDecoder(response.Body).Decode(responseBody); decodeError != nil && !errors.Is(decodeError, io.EOF) {
		return ResponseDecodingError{Operation: operation, Cause: decodeError}
	}
	return nil
}

// ExtractMessage pulls a human readable message out of a provider error body.
// It understands {"message"}, {"error": "..."}, {"error": {"message"}} and {"errors": [{"message"}]}.
func ExtractMessage(body []byte, fallback string) string {
	var envelope struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Errors  json.RawMessage `json:"errors"`
	}
	if json.Unmarshal(body, &envelope) == nil {
		if len(envelope.Message) > 0 {
			return envelope.Message
		}
		if len(envelope.Error) > 0 {
			var errorText string
			if json.Unmarshal(envelope.Error, &errorText) == nil && len(errorText) > 0 {
				return errorText
			}
			var nestedError struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(envelope.Error, &nestedError) == nil && len(nestedError.Message) > 0 {
				return nestedError.Message
			}
		}
		var errorList []struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Errors, &errorList) == nil && len(errorList) > 0 && len(errorList[0].Message) > 0 {
			return errorList[0].Message
		}
	}
	if trimmedBody := strings.TrimSpace(string(body)); len(trimmedBody) > 0 {
		return trimmedBody
	}
	return fallback
}
