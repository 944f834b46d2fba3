package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/temirov/billdesk/internal/billing"
	"github.com/temirov/billdesk/internal/deploy"
	"github.com/temirov/billdesk/internal/faults"
)

const (
	deployOperationConstant          = "deploy"
	deploymentsDisabledConstant      = "no deploy providers are configured"
	deployTargetExistsConstant       = "project already has a deploy target"
	deployTargetMissingConstant      = "project has no deploy target"
	repositoryURLFieldNameConstant   = "repositoryUrl"
	repositoryMissingMessageConstant = "project has no repository to link"
)

type createDeployTargetRequest struct {
	Provider      string `json:"provider"`
	Name          string `json:"name"`
	RepositoryURL string `json:"repositoryUrl"`
}

type linkDeployTargetRequest struct {
	RepositoryURL string `json:"repositoryUrl"`
}

type deployTargetResponse struct {
	Project billing.Project `json:"project"`
	Target  deploy.Target   `json:"target"`
}

type deploymentResponse struct {
	Project    billing.Project   `json:"project"`
	Deployment deploy.Deployment `json:"deployment"`
}

func (server *Server) handleCreateDeployTarget(requestContext *gin.Context) {
	var request createDeployTargetRequest
	if !server.bindJSON(requestContext, &request) {
		return
	}
	project, loaded := server.loadProject(requestContext)
	if !loaded {
		return
	}
	if len(project.DeployTargetID) > 0 {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: deployOperationConstant, Message: deployTargetExistsConstant})
		return
	}
	adapter, resolved := server.resolveAdapter(requestContext, request.Provider)
	if !resolved {
		return
	}

	name := strings.TrimSpace(request.Name)
	if len(name) == 0 {
		name = project.Name
	}
	repositoryURL := strings.TrimSpace(request.RepositoryURL)
	if len(repositoryURL) == 0 {
		repositoryURL = project.RepositoryURL
	}
	if !server.validateRepository(requestContext, repositoryURL) {
		return
	}

	target, createError := adapter.Create(requestContext.Request.Context(), name, repositoryURL)
	if createError != nil && len(target.ID) == 0 {
		server.abortWithError(requestContext, createError)
		return
	}
	// A project created but not linked is still recorded so it can be linked or deleted later,
	// without claiming the repository it failed to link.
	linkedRepositoryURL := repositoryURL
	if createError != nil {
		linkedRepositoryURL = ""
	}
	updatedProject, recordError := server.dependencies.Billing.RecordDeployTarget(requestContext.Request.Context(), project.ID, adapter.ProviderName(), target.ID, target.URL, linkedRepositoryURL)
	if recordError != nil {
		server.abortWithError(requestContext, recordError)
		return
	}
	if createError != nil {
		server.abortWithError(requestContext, createError)
		return
	}
	requestContext.JSON(http.StatusCreated, deployTargetResponse{Project: updatedProject, Target: target})
}

func (server *Server) handleLinkDeployTarget(requestContext *gin.Context) {
	var request linkDeployTargetRequest
	if !server.bindJSON(requestContext, &request) {
		return
	}
	project, adapter, ready := server.deployContext(requestContext)
	if !ready {
		return
	}
	repositoryURL := strings.TrimSpace(request.RepositoryURL)
	if len(repositoryURL) == 0 {
		repositoryURL = project.RepositoryURL
	}
	if len(repositoryURL) == 0 {
		server.abortWithError(requestContext, faults.InvalidInputError{FieldName: repositoryURLFieldNameConstant, Message: repositoryMissingMessageConstant})
		return
	}
	if !server.validateRepository(requestContext, repositoryURL) {
		return
	}
	target, linkError := adapter.Link(requestContext.Request.Context(), project.DeployTargetID, repositoryURL)
	if linkError != nil {
		server.abortWithError(requestContext, linkError)
		return
	}
	updatedProject, recordError := server.dependencies.Billing.RecordDeployTarget(requestContext.Request.Context(), project.ID, project.DeployProvider, project.DeployTargetID, target.URL, repositoryURL)
	server.respond(requestContext, http.StatusOK, deployTargetResponse{Project: updatedProject, Target: target}, recordError)
}

func (server *Server) handleTriggerDeploy(requestContext *gin.Context) {
	project, adapter, ready := server.deployContext(requestContext)
	if !ready {
		return
	}
	deployment, triggerError := adapter.TriggerDeploy(requestContext.Request.Context(), project.DeployTargetID)
	if triggerError != nil {
		server.abortWithError(requestContext, triggerError)
		return
	}
	updatedProject, recordError := server.dependencies.Billing.RecordDeployTarget(requestContext.Request.Context(), project.ID, project.DeployProvider, project.DeployTargetID, deployment.URL, "")
	server.respond(requestContext, http.StatusAccepted, deploymentResponse{Project: updatedProject, Deployment: deployment}, recordError)
}

func (server *Server) handleDeployStatus(requestContext *gin.Context) {
	project, adapter, ready := server.deployContext(requestContext)
	if !ready {
		return
	}
	status, statusError := adapter.Status(requestContext.Request.Context(), project.DeployTargetID)
	server.respond(requestContext, http.StatusOK, status, statusError)
}

func (server *Server) handleDeleteDeployTarget(requestContext *gin.Context) {
	project, adapter, ready := server.deployContext(requestContext)
	if !ready {
		return
	}
	if deleteError := adapter.Delete(requestContext.Request.Context(), project.DeployTargetID); deleteError != nil {
		server.abortWithError(requestContext, deleteError)
		return
	}
	updatedProject, recordError := server.dependencies.Billing.RecordDeployTarget(requestContext.Request.Context(), project.ID, "", "", "", "")
	server.respond(requestContext, http.StatusOK, updatedProject, recordError)
}

func (server *Server) loadProject(requestContext *gin.Context) (billing.Project, bool) {
	project, getError := server.dependencies.Billing.GetProject(requestContext.Request.Context(), requestContext.Param(idPathParameterConstant))
	if getError != nil {
		server.abortWithError(requestContext, getError)
		return billing.Project{}, false
	}
	return project, true
}

func (server *Server) resolveAdapter(requestContext *gin.Context, providerName string) (*deploy.Adapter, bool) {
	if server.dependencies.Deployments == nil {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: deployOperationConstant, Message: deploymentsDisabledConstant})
		return nil, false
	}
	adapter, resolveError := server.dependencies.Deployments.Resolve(requestContext.Request.Context(), providerName)
	if resolveError != nil {
		server.abortWithError(requestContext, resolveError)
		return nil, false
	}
	return adapter, true
}

// deployContext loads the project and the adapter for the provider recorded on it.
func (server *Server) deployContext(requestContext *gin.Context) (billing.Project, *deploy.Adapter, bool) {
	project, loaded := server.loadProject(requestContext)
	if !loaded {
		return billing.Project{}, nil, false
	}
	if len(project.DeployTargetID) == 0 || len(project.DeployProvider) == 0 {
		server.abortWithError(requestContext, faults.PreconditionFailedError{Operation: deployOperationConstant, Message: deployTargetMissingConstant})
		return billing.Project{}, nil, false
	}
	adapter, resolved := server.resolveAdapter(requestContext, project.DeployProvider)
	if !resolved {
		return billing.Project{}, nil, false
	}
	return project, adapter, true
}

func (server *Server) validateRepository(requestContext *gin.Context, repositoryURL string) bool {
	if server.dependencies.GitHub == nil || len(repositoryURL) == 0 {
		return true
	}
	if _, validateError := server.dependencies.GitHub.ValidateRepositoryURL(requestContext.Request.Context(), repositoryURL); validateError != nil {
		server.abortWithError(requestContext, validateError)
		return false
	}
	return true
}
