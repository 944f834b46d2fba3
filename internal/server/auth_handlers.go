package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/auth"
	"github.com/temirov/billdesk/internal/faults"
)

const (
	stateCookieNameConstant          = "billdesk_oidc_state"
	stateCookieMaxAgeSecondsConstant = 600
	rootPathConstant                 = "/"
	hostedLoginOperationConstant     = "hosted login"
	hostedLoginDisabledConstant      = "no identity provider is configured"
	stateFieldNameConstant           = "state"
	stateMismatchMessageConstant     = "does not match the login attempt"
	codeFieldNameConstant            = "code"
	codeQueryParameterConstant       = "code"
	stateQueryParameterConstant      = "state"
	idPathParameterConstant          = "id"
	userLoggedInMessageConstant      = "user logged in"
	logFieldUserIDConstant           = "user_id"
)

type localLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
}

type createdAPIKeyResponse struct {
	APIKey auth.APIKey `json:"apiKey"`
	Key    string      `json:"key"`
}

func (server *Server) handleHostedLogin(requestContext *gin.Context) {
	identityProvider := server.dependencies.Sessions.IdentityProvider()
	if identityProvider == nil {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: hostedLoginOperationConstant, Message: hostedLoginDisabledConstant})
		return
	}
	state, stateError := auth.NewState()
	if stateError != nil {
		server.abortWithError(requestContext, stateError)
		return
	}
	authorizationURL, urlError := identityProvider.AuthCodeURL(requestContext.Request.Context(), state)
	if urlError != nil {
		server.abortWithError(requestContext, urlError)
		return
	}
	http.SetCookie(requestContext.Writer, server.stateCookie(state, stateCookieMaxAgeSecondsConstant))
	requestContext.Redirect(http.StatusFound, authorizationURL)
}

func (server *Server) handleCallback(requestContext *gin.Context) {
	identityProvider := server.dependencies.Sessions.IdentityProvider()
	if identityProvider == nil {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: hostedLoginOperationConstant, Message: hostedLoginDisabledConstant})
		return
	}
	expectedState, cookieError := requestContext.Cookie(stateCookieNameConstant)
	receivedState := requestContext.Query(stateQueryParameterConstant)
	if cookieError != nil || len(expectedState) == 0 || expectedState != receivedState {
		server.abortWithError(requestContext, faults.InvalidInputError{FieldName: stateFieldNameConstant, Message: stateMismatchMessageConstant})
		return
	}
	http.SetCookie(requestContext.Writer, server.stateCookie("", -1))

	code := requestContext.Query(codeQueryParameterConstant)
	if len(code) == 0 {
		server.abortWithError(requestContext, faults.Required(codeFieldNameConstant))
		return
	}
	identity, tokens, exchangeError := identityProvider.Exchange(requestContext.Request.Context(), code)
	if exchangeError != nil {
		server.abortWithError(requestContext, exchangeError)
		return
	}
	user, upsertError := server.dependencies.Sessions.UpsertIdentity(requestContext.Request.Context(), identity)
	if upsertError != nil {
		server.abortWithError(requestContext, upsertError)
		return
	}
	if !server.startSession(requestContext, user, tokens) {
		return
	}
	requestContext.Redirect(http.StatusFound, rootPathConstant)
}

func (server *Server) handleLocalLogin(requestContext *gin.Context) {
	if !server.dependencies.LocalLogin.Enabled() {
		server.abortWithError(requestContext, faults.ErrForbidden)
		return
	}
	var request localLoginRequest
	if !server.bindJSON(requestContext, &request) {
		return
	}
	user, authenticateError := server.dependencies.LocalLogin.Authenticate(requestContext.Request.Context(), request.Email, request.Password)
	if authenticateError != nil {
		server.abortWithError(requestContext, authenticateError)
		return
	}
	if !server.startSession(requestContext, user, auth.Tokens{}) {
		return
	}
	requestContext.JSON(http.StatusOK, user)
}

func (server *Server) handleLogout(requestContext *gin.Context) {
	http.SetCookie(requestContext.Writer, server.dependencies.Sessions.End(requestContext.Request.Context(), requestContext.Request))
	redirectTarget := rootPathConstant
	if identityProvider := server.dependencies.Sessions.IdentityProvider(); identityProvider != nil {
		if endSessionURL := identityProvider.EndSessionURL(requestContext.Request.Context(), server.configuration.PublicBaseURL); len(endSessionURL) > 0 {
			redirectTarget = endSessionURL
		}
	}
	requestContext.Redirect(http.StatusFound, redirectTarget)
}

func (server *Server) handleCurrentUser(requestContext *gin.Context) {
	requestContext.JSON(http.StatusOK, currentUser(requestContext))
}

func (server *Server) handleListAPIKeys(requestContext *gin.Context) {
	apiKeys, listError := server.dependencies.APIKeys.List(requestContext.Request.Context())
	if listError != nil {
		server.abortWithError(requestContext, listError)
		return
	}
	requestContext.JSON(http.StatusOK, apiKeys)
}

// handleCreateAPIKey returns the plaintext key exactly once.
func (server *Server) handleCreateAPIKey(requestContext *gin.Context) {
	var request createAPIKeyRequest
	if !server.bindJSON(requestContext, &request) {
		return
	}
	apiKey, plaintext, createError := server.dependencies.APIKeys.Create(requestContext.Request.Context(), request.Name)
	if createError != nil {
		server.abortWithError(requestContext, createError)
		return
	}
	requestContext.JSON(http.StatusCreated, createdAPIKeyResponse{APIKey: apiKey, Key: plaintext})
}

func (server *Server) handleRevokeAPIKey(requestContext *gin.Context) {
	if revokeError := server.dependencies.APIKeys.Revoke(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant)); revokeError != nil {
		server.abortWithError(requestContext, revokeError)
		return
	}
	requestContext.Status(http.StatusNoContent)
}

func (server *Server) startSession(requestContext *gin.Context, user auth.User, tokens auth.Tokens) bool {
	sessionCookie, startError := server.dependencies.Sessions.Start(requestContext.Request.Context(), user, tokens)
	if startError != nil {
		server.abortWithError(requestContext, startError)
		return false
	}
	http.SetCookie(requestContext.Writer, sessionCookie)
	server.logger.Info(userLoggedInMessageConstant, zap.String(logFieldUserIDConstant, user.ID))
	return true
}

func (server *Server) stateCookie(value string, maxAgeSeconds int) *http.Cookie {
	return &http.Cookie{
		Name:     stateCookieNameConstant,
		Value:    value,
		Path:     rootPathConstant,
		MaxAge:   maxAgeSeconds,
		HttpOnly: true,
		Secure:   server.configuration.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
