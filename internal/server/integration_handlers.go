package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/faults"
	"github.com/temirov/billdesk/internal/payments"
)

const (
	webhookBodyLimitBytesConstant = 65536
	paymentsOperationConstant     = "payments"
	paymentsDisabledConstant      = "stripe is not configured"
	scrapeOperationConstant       = "email scrape"
	scraperDisabledConstant       = "email scraping is not configured"
	githubOperationConstant       = "github"
	githubDisabledConstant        = "no github token is configured"
	notionOperationConstant       = "notion sync"
	notionDisabledConstant        = "no notion database is configured"
	customerIDFieldNameConstant   = "customerId"
	websiteFieldNameConstant      = "website"
	websiteMissingMessageConstant = "customer has no website to scrape"
	webhookFailedMessageConstant  = "stripe webhook failed"
	logFieldEventIDConstant       = "event_id"
	emailFilledMessageConstant    = "customer email filled from website"
	logFieldCustomerIDConstant    = "customer_id"
)

type scrapeEmailRequest struct {
	URL string `json:"url"`
}

type scrapeEmailResponse struct {
	Candidates []string         `json:"candidates"`
	Customer   billing.Customer `json:"customer"`
}

type setupIntentRequest struct {
	CustomerID string `json:"customerId"`
}

type setupIntentResponse struct {
	payments.SetupIntent
	PublishableKey string `json:"publishableKey"`
}

type stripeConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
	Enabled        bool   `json:"enabled"`
}

type webhookResponse struct {
	Received bool   `json:"received"`
	EventID  string `json:"eventId"`
}

func (server *Server) handleStripeWebhook(requestContext *gin.Context) {
	requestContext.Request.Body = http.MaxBytesReader(requestContext.Writer, requestContext.Request.Body, webhookBodyLimitBytesConstant)
	payload, readError := requestContext.GetRawData()
	if readError != nil {
		server.abortWithError(requestContext, faults.InvalidInputError{FieldName: requestBodyFieldNameConstant, Message: readError.Error()})
		return
	}
	event, processError := server.dependencies.Webhooks.Process(requestContext.Request.Context(), payload, requestContext.GetHeader(payments.SignatureHeader))
	if processError != nil {
		server.logger.Warn(webhookFailedMessageConstant, zap.String(logFieldEventIDConstant, event.ID), zap.String(logFieldErrorConstant, processError.Error()))
		server.abortWithError(requestContext, processError)
		return
	}
	requestContext.JSON(http.StatusOK, webhookResponse{Received: true, EventID: event.ID})
}

func (server *Server) handleStripeConfig(requestContext *gin.Context) {
	publishableKey := server.configuration.StripePublishableKey
	if server.dependencies.Payments != nil && len(server.dependencies.Payments.PublishableKey()) > 0 {
		publishableKey = server.dependencies.Payments.PublishableKey()
	}
	requestContext.JSON(http.StatusOK, stripeConfigResponse{PublishableKey: publishableKey, Enabled: server.dependencies.Payments != nil})
}

// handleListPaymentMethods refreshes from Stripe when it is configured and falls back to stored cards otherwise.
func (server *Server) handleListPaymentMethods(requestContext *gin.Context) {
	customerID := requestContext.Query(customerIDQueryParameterConstant)
	if len(strings.TrimSpace(customerID)) == 0 {
		server.abortWithError(requestContext, faults.Required(customerIDFieldNameConstant))
		return
	}
	if server.dependencies.Payments == nil {
		paymentMethods, listError := server.dependencies.Billing.ListPaymentMethods(requestContext.Request.Context(), customerID)
		server.respond(requestContext, http.StatusOK, paymentMethods, listError)
		return
	}
	paymentMethods, syncError := server.dependencies.Payments.SyncPaymentMethods(requestContext.Request.Context(), customerID)
	server.respond(requestContext, http.StatusOK, paymentMethods, syncError)
}

func (server *Server) handleCreateSetupIntent(requestContext *gin.Context) {
	if !server.requirePayments(requestContext) {
		return
	}
	var request setupIntentRequest
	if !server.bindJSON(requestContext, &request) {
		return
	}
	setupIntent, createError := server.dependencies.Payments.CreateSetupIntent(requestContext.Request.Context(), request.CustomerID)
	server.respond(requestContext, http.StatusCreated, setupIntentResponse{SetupIntent: setupIntent, PublishableKey: server.dependencies.Payments.PublishableKey()}, createError)
}

func (server *Server) handleDetachPaymentMethod(requestContext *gin.Context) {
	paymentMethodID := requestContext.Param(idPathParameterConstant)
	if server.dependencies.Payments == nil {
		server.respondNoContent(requestContext, server.dependencies.Billing.RemovePaymentMethod(requestContext.Request.Context(), paymentMethodID))
		return
	}
	server.respondNoContent(requestContext, server.dependencies.Payments.DetachPaymentMethod(requestContext.Request.Context(), paymentMethodID))
}

// handleScrapeEmail suggests contact addresses and fills the customer email when it is empty.
func (server *Server) handleScrapeEmail(requestContext *gin.Context) {
	if server.dependencies.Scraper == nil {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: scrapeOperationConstant, Message: scraperDisabledConstant})
		return
	}
	var request scrapeEmailRequest
	if requestContext.Request.ContentLength > 0 && !server.bindJSON(requestContext, &request) {
		return
	}
	customer, getError := server.dependencies.Billing.GetCustomer(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	if getError != nil {
		server.abortWithError(requestContext, getError)
		return
	}
	websiteURL := strings.TrimSpace(request.URL)
	if len(websiteURL) == 0 {
		websiteURL = customer.Website
	}
	if len(strings.TrimSpace(websiteURL)) == 0 {
		server.abortWithError(requestContext, faults.InvalidInputError{FieldName: websiteFieldNameConstant, Message: websiteMissingMessageConstant})
		return
	}

	candidates, scrapeError := server.dependencies.Scraper.Scrape(requestContext.Request.Context(), websiteURL)
	if scrapeError != nil {
		server.abortWithError(requestContext, scrapeError)
		return
	}
	if len(customer.Email) == 0 && len(candidates) > 0 {
		customer.Email = candidates[0]
		savedCustomer, saveError := server.dependencies.Billing.SaveCustomer(requestContext.Request.Context(), customer)
		if saveError != nil {
			server.abortWithError(requestContext, saveError)
			return
		}
		customer = savedCustomer
		server.logger.Info(emailFilledMessageConstant, zap.String(logFieldCustomerIDConstant, customer.ID))
	}
	if candidates == nil {
		candidates = []string{}
	}
	requestContext.JSON(http.StatusOK, scrapeEmailResponse{Candidates: candidates, Customer: customer})
}

func (server *Server) handleGitHubRepositories(requestContext *gin.Context) {
	if server.dependencies.GitHub == nil {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: githubOperationConstant, Message: githubDisabledConstant})
		return
	}
	repositories, listError := server.dependencies.GitHub.ListRepositories(requestContext.Request.Context())
	server.respond(requestContext, http.StatusOK, repositories, listError)
}

func (server *Server) handleNotionSync(requestContext *gin.Context) {
	if server.dependencies.Notion == nil {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: notionOperationConstant, Message: notionDisabledConstant})
		return
	}
	result, syncError := server.dependencies.Notion.Sync(requestContext.Request.Context())
	server.respond(requestContext, http.StatusOK, result, syncError)
}

func (server *Server) requirePayments(requestContext *gin.Context) bool {
	if server.dependencies.Payments == nil {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: paymentsOperationConstant, Message: paymentsDisabledConstant})
		return false
	}
	return true
}
