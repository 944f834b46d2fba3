package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/knowledgebase"
)

const (
	customerIDQueryParameterConstant = "customerId"
	statusQueryParameterConstant     = "status"
	categoryQueryParameterConstant   = "category"
	searchQueryParameterConstant     = "q"
)

type quoteRequestStatusRequest struct {
	Status string `json:"status"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type dashboardResponse struct {
	billing.DashboardStats
	OpenQuestions int `json:"openQuestions"`
}

func (server *Server) handleListCustomers(requestContext *gin.Context) {
	customers, listError := server.dependencies.Billing.ListCustomers(requestContext.Request.Context())
	server.respond(requestContext, http.StatusOK, customers, listError)
}

func (server *Server) handleCreateCustomer(requestContext *gin.Context) {
	var input billing.CustomerInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	customer, createError := server.dependencies.Billing.CreateCustomer(requestContext.Request.Context(), input)
	server.respond(requestContext, http.StatusCreated, customer, createError)
}

func (server *Server) handleGetCustomer(requestContext *gin.Context) {
	customer, getError := server.dependencies.Billing.GetCustomer(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respond(requestContext, http.StatusOK, customer, getError)
}

func (server *Server) handleUpdateCustomer(requestContext *gin.Context) {
	var input billing.CustomerInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	customer, updateError := server.dependencies.Billing.UpdateCustomer(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant), input)
	server.respond(requestContext, http.StatusOK, customer, updateError)
}

func (server *Server) handleDeleteCustomer(requestContext *gin.Context) {
	deleteError := server.dependencies.Billing.DeleteCustomer(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respondNoContent(requestContext, deleteError)
}

func (server *Server) handleListProjects(requestContext *gin.Context) {
	projects, listError := server.dependencies.Billing.ListProjects(requestContext.Request.Context(), requestContext.Query(customerIDQueryParameterConstant))
	server.respond(requestContext, http.StatusOK, projects, listError)
}

func (server *Server) handleCreateProject(requestContext *gin.Context) {
	var input billing.ProjectInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	project, createError := server.dependencies.Billing.CreateProject(requestContext.Request.Context(), input)
	server.respond(requestContext, http.StatusCreated, project, createError)
}

func (server *Server) handleGetProject(requestContext *gin.Context) {
	project, getError := server.dependencies.Billing.GetProject(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respond(requestContext, http.StatusOK, project, getError)
}

func (server *Server) handleUpdateProject(requestContext *gin.Context) {
	var input billing.ProjectInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	project, updateError := server.dependencies.Billing.UpdateProject(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant), input)
	server.respond(requestContext, http.StatusOK, project, updateError)
}

func (server *Server) handleDeleteProject(requestContext *gin.Context) {
	deleteError := server.dependencies.Billing.DeleteProject(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respondNoContent(requestContext, deleteError)
}

func (server *Server) handleListInvoices(requestContext *gin.Context) {
	invoices, listError := server.dependencies.Billing.ListInvoices(requestContext.Request.Context(), requestContext.Query(customerIDQueryParameterConstant))
	server.respond(requestContext, http.StatusOK, invoices, listError)
}

func (server *Server) handleCreateInvoice(requestContext *gin.Context) {
	var input billing.InvoiceInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	invoice, createError := server.dependencies.Billing.CreateInvoice(requestContext.Request.Context(), input)
	server.respond(requestContext, http.StatusCreated, invoice, createError)
}

func (server *Server) handleGetInvoice(requestContext *gin.Context) {
	invoice, getError := server.dependencies.Billing.GetInvoice(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respond(requestContext, http.StatusOK, invoice, getError)
}

func (server *Server) handleUpdateInvoice(requestContext *gin.Context) {
	var input billing.InvoiceInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	invoice, updateError := server.dependencies.Billing.UpdateInvoice(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant), input)
	server.respond(requestContext, http.StatusOK, invoice, updateError)
}

func (server *Server) handleDeleteInvoice(requestContext *gin.Context) {
	deleteError := server.dependencies.Billing.DeleteInvoice(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respondNoContent(requestContext, deleteError)
}

func (server *Server) handleMarkInvoicePaid(requestContext *gin.Context) {
	invoice, markError := server.dependencies.Billing.MarkInvoicePaid(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respond(requestContext, http.StatusOK, invoice, markError)
}

func (server *Server) handleListQuotes(requestContext *gin.Context) {
	quotes, listError := server.dependencies.Billing.ListQuotes(requestContext.Request.Context(), requestContext.Query(customerIDQueryParameterConstant))
	server.respond(requestContext, http.StatusOK, quotes, listError)
}

func (server *Server) handleCreateQuote(requestContext *gin.Context) {
	var input billing.QuoteInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	quote, createError := server.dependencies.Billing.CreateQuote(requestContext.Request.Context(), input)
	server.respond(requestContext, http.StatusCreated, quote, createError)
}

func (server *Server) handleGetQuote(requestContext *gin.Context) {
	quote, getError := server.dependencies.Billing.GetQuote(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respond(requestContext, http.StatusOK, quote, getError)
}

func (server *Server) handleUpdateQuote(requestContext *gin.Context) {
	var input billing.QuoteInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	quote, updateError := server.dependencies.Billing.UpdateQuote(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant), input)
	server.respond(requestContext, http.StatusOK, quote, updateError)
}

func (server *Server) handleDeleteQuote(requestContext *gin.Context) {
	deleteError := server.dependencies.Billing.DeleteQuote(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respondNoContent(requestContext, deleteError)
}

func (server *Server) handleConvertQuote(requestContext *gin.Context) {
	invoice, convertError := server.dependencies.Billing.ConvertQuoteToInvoice(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respond(requestContext, http.StatusCreated, invoice, convertError)
}

func (server *Server) handleSubmitQuoteRequest(requestContext *gin.Context) {
	var input billing.QuoteRequestInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	quoteRequest, submitError := server.dependencies.Billing.SubmitQuoteRequest(requestContext.Request.Context(), input)
	server.respond(requestContext, http.StatusCreated, quoteRequest, submitError)
}

func (server *Server) handleListQuoteRequests(requestContext *gin.Context) {
	quoteRequests, listError := server.dependencies.Billing.ListQuoteRequests(requestContext.Request.Context())
	server.respond(requestContext, http.StatusOK, quoteRequests, listError)
}

func (server *Server) handleUpdateQuoteRequest(requestContext *gin.Context) {
	var request quoteRequestStatusRequest
	if !server.bindJSON(requestContext, &request) {
		return
	}
	quoteRequest, updateError := server.dependencies.Billing.UpdateQuoteRequestStatus(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant), request.Status)
	server.respond(requestContext, http.StatusOK, quoteRequest, updateError)
}

func (server *Server) handleSubmitQuestion(requestContext *gin.Context) {
	var input knowledgebase.QuestionInput
	if !server.bindJSON(requestContext, &input) {
		return
	}
	question, submitError := server.dependencies.Questions.Submit(requestContext.Request.Context(), input)
	server.respond(requestContext, http.StatusCreated, question, submitError)
}

func (server *Server) handlePublicKnowledgeBase(requestContext *gin.Context) {
	questions, listError := server.dependencies.Questions.PublicKnowledgeBase(
		requestContext.Request.Context(),
		requestContext.Query(searchQueryParameterConstant),
		requestContext.Query(categoryQueryParameterConstant),
	)
	server.respond(requestContext, http.StatusOK, questions, listError)
}

func (server *Server) handleListQuestions(requestContext *gin.Context) {
	filter := knowledgebase.QuestionFilter{
		Status:   knowledgebase.QuestionStatus(requestContext.Query(statusQueryParameterConstant)),
		Category: requestContext.Query(categoryQueryParameterConstant),
		Query:    requestContext.Query(searchQueryParameterConstant),
	}
	questions, listError := server.dependencies.Questions.List(requestContext.Request.Context(), filter)
	server.respond(requestContext, http.StatusOK, questions, listError)
}

func (server *Server) handleAnswerQuestion(requestContext *gin.Context) {
	var request answerRequest
	if !server.bindJSON(requestContext, &request) {
		return
	}
	question, answerError := server.dependencies.Questions.Answer(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant), request.Answer)
	server.respond(requestContext, http.StatusOK, question, answerError)
}

func (server *Server) handlePublishQuestion(requestContext *gin.Context) {
	question, publishError := server.dependencies.Questions.Publish(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respond(requestContext, http.StatusOK, question, publishError)
}

func (server *Server) handleDeleteQuestion(requestContext *gin.Context) {
	deleteError := server.dependencies.Questions.Delete(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	server.respondNoContent(requestContext, deleteError)
}

func (server *Server) handleDashboardStats(requestContext *gin.Context) {
	stats, statsError := server.dependencies.Billing.DashboardStats(requestContext.Request.Context())
	if statsError != nil {
		server.abortWithError(requestContext, statsError)
		return
	}
	openQuestions, countError := server.dependencies.Questions.CountOpen(requestContext.Request.Context())
	server.respond(requestContext, http.StatusOK, dashboardResponse{DashboardStats: stats, OpenQuestions: openQuestions}, countError)
}

func (server *Server) respond(requestContext *gin.Context, statusCode int, payload any, err error) {
	if err != nil {
		server.abortWithError(requestContext, err)
		return
	}
	requestContext.JSON(statusCode, payload)
}

func (server *Server) respondNoContent(requestContext *gin.Context, err error) {
	if err != nil {
		server.abortWithError(requestContext, err)
		return
	}
	requestContext.Status(http.StatusNoContent)
}
