package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/credentials"
	"github.com/temirov/billdesk/internal/deploy"
)

const (
	deployCommandUseConstant           = "deploy"
	deployCommandShortConstant         = "Drive Netlify, Vercel and Railway"
	deployCommandLongConstant          = "deploy creates, links, builds, inspects and deletes hosting projects through the provider adapter. Tokens come from the configured credential sources."
	deployProviderFlagNameConstant     = "provider"
	deployProviderFlagUsageConstant    = "Deploy provider (netlify, vercel or railway)."
	deployRepositoryFlagNameConstant   = "repository"
	deployRepositoryFlagUsageConstant  = "GitHub repository URL to link."
	deployProjectFlagNameConstant      = "project"
	deployProjectFlagUsageConstant     = "billdesk project ID to record the target on."
	providersCommandUseConstant        = "providers"
	providersCommandShortConstant      = "List registered providers"
	createCommandUseConstant           = "create <name>"
	createCommandShortConstant         = "Create a hosting project, retrying with a suffix on name collisions"
	linkCommandUseConstant             = "link <target-id>"
	linkCommandShortConstant           = "Link a hosting project to a GitHub repository"
	triggerCommandUseConstant          = "trigger <target-id>"
	triggerCommandShortConstant        = "Start a deployment"
	statusCommandUseConstant           = "status <target-id>"
	statusCommandShortConstant         = "Show project and latest deployment state"
	deleteCommandUseConstant           = "delete <target-id>"
	deleteCommandShortConstant         = "Delete a hosting project"
	targetCreatedTemplateConstant      = "Created %s target %s"
	targetLinkedTemplateConstant       = "Linked %s target %s"
	deploymentStartedTemplateConstant  = "Started deployment %s"
	targetStatusTemplateConstant       = "%s target %s"
	targetDeletedTemplateConstant      = "Deleted %s target %s"
	projectRecordedTemplateConstant    = "Recorded on project %s"
	nameFieldLabelConstant             = "name"
	urlFieldLabelConstant              = "url"
	stateFieldLabelConstant            = "state"
	deploymentFieldLabelConstant       = "deployment"
	deployTargetCreatedMessageConstant = "deploy target created"
	logFieldProviderConstant           = "provider"
	logFieldTargetIDConstant           = "target_id"
)

// DeployCommandBuilder assembles the deploy command group.
type DeployCommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() ApplicationConfiguration
	// RegistryProvider overrides the provider registry; nil uses netlify, vercel and railway.
	RegistryProvider func(logger *zap.Logger, configuration ApplicationConfiguration) *deploy.Registry
}

// Build constructs the deploy command group.
func (builder DeployCommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errLoggerProviderMissing
	}
	if builder.ConfigurationProvider == nil {
		return nil, errConfigurationProviderMissing
	}

	command := &cobra.Command{
		Use:   deployCommandUseConstant,
		Short: deployCommandShortConstant,
		Long:  deployCommandLongConstant,
	}
	command.PersistentFlags().String(deployProviderFlagNameConstant, deploy.ProviderNetlify, deployProviderFlagUsageConstant)

	providersCommand := &cobra.Command{
		Use:   providersCommandUseConstant,
		Short: providersCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			printer := newConsolePrinter(command.OutOrStdout())
			for _, providerName := range builder.registry().Names() {
				printer.Line(plainLineTemplateConstant, providerName)
			}
			return nil
		},
	}

	createCommand := &cobra.Command{
		Use:   createCommandUseConstant,
		Short: createCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runCreate,
	}
	createCommand.Flags().String(deployRepositoryFlagNameConstant, "", deployRepositoryFlagUsageConstant)
	createCommand.Flags().String(deployProjectFlagNameConstant, "", deployProjectFlagUsageConstant)

	linkCommand := &cobra.Command{
		Use:   linkCommandUseConstant,
		Short: linkCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runLink,
	}
	linkCommand.Flags().String(deployRepositoryFlagNameConstant, "", deployRepositoryFlagUsageConstant)

	triggerCommand := &cobra.Command{
		Use:   triggerCommandUseConstant,
		Short: triggerCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runTrigger,
	}

	statusCommand := &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runStatus,
	}

	deleteCommand := &cobra.Command{
		Use:   deleteCommandUseConstant,
		Short: deleteCommandShortConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.runDelete,
	}

	command.AddCommand(providersCommand, createCommand, linkCommand, triggerCommand, statusCommand, deleteCommand)
	return command, nil
}

func (builder DeployCommandBuilder) registry() *deploy.Registry {
	logger := builder.LoggerProvider()
	configuration := builder.ConfigurationProvider()
	if builder.RegistryProvider != nil {
		return builder.RegistryProvider(logger, configuration)
	}
	return newDeployRegistry(logger, credentials.NewResolver(nil, nil), configuration.Deploy)
}

func (builder DeployCommandBuilder) adapter(command *cobra.Command) (*deploy.Adapter, error) {
	providerName, _ := command.Flags().GetString(deployProviderFlagNameConstant)
	return builder.registry().Resolve(command.Context(), providerName)
}

func (builder DeployCommandBuilder) runCreate(command *cobra.Command, arguments []string) error {
	adapter, adapterError := builder.adapter(command)
	if adapterError != nil {
		return adapterError
	}
	repositoryURL, _ := command.Flags().GetString(deployRepositoryFlagNameConstant)
	projectID, _ := command.Flags().GetString(deployProjectFlagNameConstant)

	target, createError := adapter.Create(command.Context(), arguments[0], repositoryURL)
	if len(target.ID) == 0 {
		return createError
	}
	builder.LoggerProvider().Info(deployTargetCreatedMessageConstant, zap.String(logFieldProviderConstant, adapter.ProviderName()), zap.String(logFieldTargetIDConstant, target.ID))

	printer := newConsolePrinter(command.OutOrStdout())
	printer.Success(targetCreatedTemplateConstant, adapter.ProviderName(), target.ID)
	printer.Field(nameFieldLabelConstant, target.Name)
	printer.Field(urlFieldLabelConstant, target.URL)

	if trimmedProjectID := strings.TrimSpace(projectID); len(trimmedProjectID) > 0 {
		services, openError := openApplicationServices(builder.LoggerProvider(), builder.ConfigurationProvider())
		if openError != nil {
			return openError
		}
		defer services.Close()
		if _, recordError := services.billing.RecordDeployTarget(command.Context(), trimmedProjectID, adapter.ProviderName(), target.ID, target.URL, repositoryURL); recordError != nil {
			return recordError
		}
		printer.Line(projectRecordedTemplateConstant, trimmedProjectID)
	}
	return createError
}

func (builder DeployCommandBuilder) runLink(command *cobra.Command, arguments []string) error {
	adapter, adapterError := builder.adapter(command)
	if adapterError != nil {
		return adapterError
	}
	repositoryURL, _ := command.Flags().GetString(deployRepositoryFlagNameConstant)
	target, linkError := adapter.Link(command.Context(), arguments[0], repositoryURL)
	if linkError != nil {
		return linkError
	}
	newConsolePrinter(command.OutOrStdout()).Success(targetLinkedTemplateConstant, adapter.ProviderName(), target.ID)
	return nil
}

func (builder DeployCommandBuilder) runTrigger(command *cobra.Command, arguments []string) error {
	adapter, adapterError := builder.adapter(command)
	if adapterError != nil {
		return adapterError
	}
	deployment, triggerError := adapter.TriggerDeploy(command.Context(), arguments[0])
	if triggerError != nil {
		return triggerError
	}
	printer := newConsolePrinter(command.OutOrStdout())
	printer.Success(deploymentStartedTemplateConstant, deployment.ID)
	printer.Field(stateFieldLabelConstant, deployment.State)
	printer.Field(urlFieldLabelConstant, deployment.URL)
	return nil
}

func (builder DeployCommandBuilder) runStatus(command *cobra.Command, arguments []string) error {
	adapter, adapterError := builder.adapter(command)
	if adapterError != nil {
		return adapterError
	}
	status, statusError := adapter.Status(command.Context(), arguments[0])
	if statusError != nil {
		return statusError
	}
	printer := newConsolePrinter(command.OutOrStdout())
	printer.Heading(targetStatusTemplateConstant, adapter.ProviderName(), arguments[0])
	printer.Field(stateFieldLabelConstant, status.State)
	printer.Field(urlFieldLabelConstant, status.URL)
	if status.LatestDeployment != nil {
		printer.Field(deploymentFieldLabelConstant, status.LatestDeployment.ID)
	}
	return nil
}

func (builder DeployCommandBuilder) runDelete(command *cobra.Command, arguments []string) error {
	adapter, adapterError := builder.adapter(command)
	if adapterError != nil {
		return adapterError
	}
	if deleteError := adapter.Delete(command.Context(), arguments[0]); deleteError != nil {
		return deleteError
	}
	newConsolePrinter(command.OutOrStdout()).Success(targetDeletedTemplateConstant, adapter.ProviderName(), arguments[0])
	return nil
}
