package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/auth"
	"github.com/temirov/billdesk/internal/faults"
)

const (
	principalContextKeyConstant     = "billdesk.principal"
	authorizationHeaderConstant     = "Authorization"
	bearerPrefixConstant            = "Bearer "
	apiKeyPrincipalTemplateConstant = "apikey:%s"
	requestHandledMessageConstant   = "http request"
	panicRecoveredMessageConstant   = "http handler panicked"
	logFieldMethodConstant          = "method"
	logFieldPathConstant            = "path"
	logFieldStatusConstant          = "status"
	logFieldLatencyConstant         = "latency"
	logFieldClientIPConstant        = "client_ip"
	logFieldPanicConstant           = "panic"
)

// requestLogger writes one zap line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(requestContext *gin.Context) {
		startedAt := time.Now()
		requestContext.Next()
		fields := []zap.Field{
			zap.String(logFieldMethodConstant, requestContext.Request.Method),
			zap.String(logFieldPathConstant, requestContext.Request.URL.Path),
			zap.Int(logFieldStatusConstant, requestContext.Writer.Status()),
			zap.Duration(logFieldLatencyConstant, time.Since(startedAt)),
			zap.String(logFieldClientIPConstant, requestContext.ClientIP()),
		}
		if requestContext.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn(requestHandledMessageConstant, fields...)
			return
		}
		logger.Info(requestHandledMessageConstant, fields...)
	}
}

func recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(requestContext *gin.Context, recovered any) {
		logger.Error(panicRecoveredMessageConstant, zap.String(logFieldPathConstant, requestContext.Request.URL.Path), zap.Any(logFieldPanicConstant, recovered))
		requestContext.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Message: http.StatusText(http.StatusInternalServerError)})
	})
}

// requireAuthentication accepts a "Bearer bd_..." API key or a session cookie.
func (server *Server) requireAuthentication(requestContext *gin.Context) {
	authorization := requestContext.GetHeader(authorizationHeaderConstant)
	if strings.HasPrefix(authorization, bearerPrefixConstant) {
		candidate := strings.TrimSpace(strings.TrimPrefix(authorization, bearerPrefixConstant))
		if auth.LooksLikeAPIKey(candidate) {
			apiKey, authenticateError := server.dependencies.APIKeys.Authenticate(requestContext.Request.Context(), candidate)
			if authenticateError != nil {
				server.abortWithError(requestContext, authenticateError)
				return
			}
			requestContext.Set(principalContextKeyConstant, auth.User{
				ID:        fmt.Sprintf(apiKeyPrincipalTemplateConstant, apiKey.ID),
				FirstName: apiKey.Name,
				Role:      auth.RoleMember,
			})
			requestContext.Next()
			return
		}
	}

	user, _, resolveError := server.dependencies.Sessions.Resolve(requestContext.Request.Context(), requestContext.Request)
	if resolveError != nil {
		server.abortWithError(requestContext, resolveError)
		return
	}
	requestContext.Set(principalContextKeyConstant, user)
	requestContext.Next()
}

func (server *Server) requireAdmin(requestContext *gin.Context) {
	if !currentUser(requestContext).IsAdmin() {
		server.abortWithError(requestContext, faults.ErrForbidden)
		return
	}
	requestContext.Next()
}

func currentUser(requestContext *gin.Context) auth.User {
	value, exists := requestContext.Get(principalContextKeyConstant)
	if !exists {
		return auth.User{}
	}
	user, _ := value.(auth.User)
	return user
}
