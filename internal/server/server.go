package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/auth"
	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/github"
	"github.com/temirov/billdesk/internal/knowledgebase"
	"github.com/temirov/billdesk/internal/notion"
	"github.com/temirov/billdesk/internal/payments"
	"github.com/temirov/billdesk/internal/scraper"
)

const (
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	readHeaderTimeoutConstant       = 10 * time.Second
	billingMissingMessageConstant   = "billing service must be provided"
	questionsMissingMessageConstant = "knowledge base service must be provided"
	sessionsMissingMessageConstant  = "session manager must be provided"
	apiKeysMissingMessageConstant   = "api key service must be provided"
	serverListeningMessageConstant  = "http server listening"
	serverStoppingMessageConstant   = "http server stopping"
	logFieldAddressConstant         = "address"
)

// Dependencies wires the domain services behind the HTTP API.
// Deployments, Scraper, Payments, GitHub and Notion are optional; their endpoints answer 412 when absent.
type Dependencies struct {
	Billing     *billing.Service
	Questions   *knowledgebase.Service
	Sessions    *auth.SessionManager
	LocalLogin  *auth.LocalAuthenticator
	APIKeys     *auth.APIKeyService
	Deployments *deploy.Registry
	Scraper     *scraper.Scraper
	Payments    *payments.Gateway
	Webhooks    *payments.WebhookProcessor
	GitHub      *github.Client
	Notion      *notion.Syncer
}

// Configuration holds HTTP-facing settings.
type Configuration struct {
	PublicBaseURL        string
	SecureCookies        bool
	StripePublishableKey string
}

// Server is the billdesk HTTP API.
type Server struct {
	logger        *zap.Logger
	dependencies  Dependencies
	configuration Configuration
	router        *gin.Engine
}

// NewServer validates dependencies and registers every route.
func NewServer(logger *zap.Logger, dependencies Dependencies, configuration Configuration) (*Server, error) {
	switch {
	case dependencies.Billing == nil:
		return nil, errors.New(billingMissingMessageConstant)
	case dependencies.Questions == nil:
		return nil, errors.New(questionsMissingMessageConstant)
	case dependencies.Sessions == nil:
		return nil, errors.New(sessionsMissingMessageConstant)
	case dependencies.APIKeys == nil:
		return nil, errors.New(apiKeysMissingMessageConstant)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dependencies.Webhooks == nil {
		dependencies.Webhooks = payments.NewWebhookProcessor(logger, "", dependencies.Billing)
	}

	router := gin.New()
	router.Use(requestLogger(logger), recovery(logger))
	server := &Server{logger: logger, dependencies: dependencies, configuration: configuration, router: router}
	server.registerRoutes()
	return server, nil
}

// Handler exposes the router for embedding and tests.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Run serves on address until executionContext is cancelled, then shuts down gracefully.
func (server *Server) Run(executionContext context.Context, address string) error {
	httpServer := &http.Server{Addr: address, Handler: server.router, ReadHeaderTimeout: readHeaderTimeoutConstant}
	serveErrors := make(chan error, 1)
	go func() {
		server.logger.Info(serverListeningMessageConstant, zap.String(logFieldAddressConstant, address))
		serveErrors <- httpServer.ListenAndServe()
	}()

	select {
	case serveError := <-serveErrors:
		if errors.Is(serveError, http.ErrServerClosed) {
			return nil
		}
		return serveError
	case <-executionContext.Done():
		server.logger.Info(serverStoppingMessageConstant)
		shutdownContext, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownContext)
	}
}

func (server *Server) registerRoutes() {
	router := server.router
	router.GET("/healthz", server.handleHealth)

	public := router.Group("/api")
	{
		public.GET("/login", server.handleHostedLogin)
		public.POST("/login", server.handleLocalLogin)
		public.GET("/callback", server.handleCallback)
		public.GET("/logout", server.handleLogout)
		public.POST("/logout", server.handleLogout)
		public.POST("/stripe/webhook", server.handleStripeWebhook)
		public.GET("/stripe/config", server.handleStripeConfig)
		public.GET("/public/knowledge-base", server.handlePublicKnowledgeBase)
		public.POST("/quote-requests", server.handleSubmitQuoteRequest)
		public.POST("/qa/questions", server.handleSubmitQuestion)
	}

	authenticated := router.Group("/api", server.requireAuthentication)
	{
		authenticated.GET("/auth/user", server.handleCurrentUser)

		authenticated.GET("/customers", server.handleListCustomers)
		authenticated.POST("/customers", server.handleCreateCustomer)
		authenticated.GET("/customers/:id", server.handleGetCustomer)
		authenticated.PATCH("/customers/:id", server.handleUpdateCustomer)
		authenticated.PUT("/customers/:id", server.handleUpdateCustomer)
		authenticated.DELETE("/customers/:id", server.handleDeleteCustomer)
		authenticated.POST("/customers/:id/scrape-email", server.handleScrapeEmail)

		authenticated.GET("/projects", server.handleListProjects)
		authenticated.POST("/projects", server.handleCreateProject)
		authenticated.GET("/projects/:id", server.handleGetProject)
		authenticated.PATCH("/projects/:id", server.handleUpdateProject)
		authenticated.PUT("/projects/:id", server.handleUpdateProject)
		authenticated.DELETE("/projects/:id", server.handleDeleteProject)
		authenticated.POST("/projects/:id/deploy", server.handleCreateDeployTarget)
		authenticated.POST("/projects/:id/deploy/link", server.handleLinkDeployTarget)
		authenticated.POST("/projects/:id/deploy/trigger", server.handleTriggerDeploy)
		authenticated.GET("/projects/:id/deploy/status", server.handleDeployStatus)
		authenticated.DELETE("/projects/:id/deploy", server.handleDeleteDeployTarget)

		authenticated.GET("/invoices", server.handleListInvoices)
		authenticated.POST("/invoices", server.handleCreateInvoice)
		authenticated.GET("/invoices/:id", server.handleGetInvoice)
		authenticated.PATCH("/invoices/:id", server.handleUpdateInvoice)
		authenticated.PUT("/invoices/:id", server.handleUpdateInvoice)
		authenticated.DELETE("/invoices/:id", server.handleDeleteInvoice)
		authenticated.POST("/invoices/:id/mark-paid", server.handleMarkInvoicePaid)

		authenticated.GET("/quotes", server.handleListQuotes)
		authenticated.POST("/quotes", server.handleCreateQuote)
		authenticated.GET("/quotes/:id", server.handleGetQuote)
		authenticated.PATCH("/quotes/:id", server.handleUpdateQuote)
		authenticated.PUT("/quotes/:id", server.handleUpdateQuote)
		authenticated.DELETE("/quotes/:id", server.handleDeleteQuote)
		authenticated.POST("/quotes/:id/convert", server.handleConvertQuote)

		authenticated.GET("/quote-requests", server.handleListQuoteRequests)
		authenticated.PATCH("/quote-requests/:id", server.handleUpdateQuoteRequest)

		authenticated.GET("/qa/questions", server.handleListQuestions)
		authenticated.POST("/qa/questions/:id/answer", server.handleAnswerQuestion)
		authenticated.POST("/qa/questions/:id/publish", server.handlePublishQuestion)
		authenticated.DELETE("/qa/questions/:id", server.handleDeleteQuestion)

		authenticated.GET("/payment-methods", server.handleListPaymentMethods)
		authenticated.POST("/payment-methods/setup-intent", server.handleCreateSetupIntent)
		authenticated.DELETE("/payment-methods/:id", server.handleDetachPaymentMethod)

		authenticated.GET("/github/repos", server.handleGitHubRepositories)
		authenticated.POST("/notion/sync", server.handleNotionSync)
		authenticated.GET("/dashboard/stats", server.handleDashboardStats)
	}

	admin := router.Group("/api/api-keys", server.requireAuthentication, server.requireAdmin)
	{
		admin.GET("", server.handleListAPIKeys)
		admin.POST("", server.handleCreateAPIKey)
		admin.DELETE("/:id", server.handleRevokeAPIKey)
	}
}

func (server *Server) handleHealth(requestContext *gin.Context) {
	requestContext.JSON(http.StatusOK, gin.H{"status": "ok"})
}
