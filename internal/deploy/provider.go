package deploy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/temirov/billdesk/internal/apiclient"
	"github.com/temirov/billdesk/internal/gitrepo"
)

const (
	providerErrorTemplateConstant           = "%s: %s"
	providerErrorWithStatusTemplateConstant = "%s: %s (%d)"
	nameTakenMessageConstant                = "project name is already taken"
	notFoundMessageFragmentConstant         = "not found"
	providerNameNetlifyConstant             = "netlify"
	providerNameVercelConstant              = "vercel"
	providerNameRailwayConstant             = "railway"
)

// Supported provider names.
const (
	ProviderNetlify = providerNameNetlifyConstant
	ProviderVercel  = providerNameVercelConstant
	ProviderRailway = providerNameRailwayConstant
)

// ErrNameTaken is returned by providers when a project name collides with an existing one.
var ErrNameTaken = errors.New(nameTakenMessageConstant)

// State is a provider-neutral deployment state.
type State string

// Normalized deployment states.
const (
	StateQueued   State = State("queued")
	StateBuilding State = State("building")
	StateReady    State = State("ready")
	StateError    State = State("error")
	StateCanceled State = State("canceled")
	StateUnknown  State = State("unknown")
)

// Target is a project on a deploy provider.
type Target struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Deployment describes one build of a target.
type Deployment struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// Status is the current state of a target and its latest deployment.
type Status struct {
	State            State       `json:"state"`
	URL              string      `json:"url"`
	LatestDeployment *Deployment `json:"latestDeployment,omitempty"`
}

// Provider is implemented by each hosting platform.
// CreateProject reports collisions with ErrNameTaken, TriggerDeploy reports an unlinked target with
// faults.PreconditionFailedError, and DeleteProject may return a ProviderError for a missing target.
type Provider interface {
	Name() string
	CreateProject(executionContext context.Context, name string) (Target, error)
	LinkRepository(executionContext context.Context, targetID string, repository gitrepo.Repository) (Target, error)
	TriggerDeploy(executionContext context.Context, targetID string) (Deployment, error)
	Status(executionContext context.Context, targetID string) (Status, error)
	DeleteProject(executionContext context.Context, targetID string) error
}

// ProviderError carries a provider's own error message.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

// Error describes the provider failure.
func (providerError ProviderError) Error() string {
	if providerError.StatusCode == 0 {
		return fmt.Sprintf(providerErrorTemplateConstant, providerError.Provider, providerError.Message)
	}
	return fmt.Sprintf(providerErrorWithStatusTemplateConstant, providerError.Provider, providerError.Message, providerError.StatusCode)
}

// WrapProviderError converts transport status errors into ProviderError and leaves other errors unchanged.
func WrapProviderError(providerName string, err error) error {
	if err == nil {
		return nil
	}
	var statusError apiclient.StatusError
	if errors.As(err, &statusError) {
		return ProviderError{Provider: providerName, StatusCode: statusError.StatusCode, Message: statusError.Message}
	}
	return err
}

// IsMissingTarget reports whether err means the provider has no such project.
func IsMissingTarget(err error) bool {
	var providerError ProviderError
	if !errors.As(err, &providerError) {
		return false
	}
	if providerError.StatusCode == http.StatusNotFound {
		return true
	}
	return strings.Contains(strings.ToLower(providerError.Message), notFoundMessageFragmentConstant)
}
