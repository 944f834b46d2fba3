package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	notionCommandUseConstant         = "notion"
	notionCommandShortConstant       = "Notion knowledge base import"
	notionSyncCommandUseConstant     = "sync"
	notionSyncCommandShortConstant   = "Import the configured Notion database into the knowledge base"
	notionSyncOperationConstant      = "notion sync"
	notionNotConfiguredConstant      = "set notion.database_id (NOTION_DATABASE_ID) and a token or connector"
	notionSyncedHeadingConstant      = "Notion sync complete"
	createdFieldLabelConstant        = "created"
	updatedFieldLabelConstant        = "updated"
	skippedFieldLabelConstant        = "skipped"
	githubCommandUseConstant         = "github"
	githubCommandShortConstant       = "GitHub repository access"
	githubReposCommandUseConstant    = "repos"
	githubReposCommandShortConstant  = "List repositories visible to the configured credentials"
	githubReposOperationConstant     = "github repos"
	githubNotConfiguredConstant      = "set github.token, GH_TOKEN or GITHUB_TOKEN, or configure the connector broker"
	githubRepositoryTemplateConstant = "%-40s %s"
	githubPrivateMarkerConstant      = "private"
	githubPublicMarkerConstant       = "public"
)

// NotionCommandBuilder assembles the notion command group.
type NotionCommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() ApplicationConfiguration
}

// Build constructs the notion command group.
func (builder NotionCommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errLoggerProviderMissing
	}
	if builder.ConfigurationProvider == nil {
		return nil, errConfigurationProviderMissing
	}
	command := &cobra.Command{
		Use:   notionCommandUseConstant,
		Short: notionCommandShortConstant,
	}
	command.AddCommand(&cobra.Command{
		Use:   notionSyncCommandUseConstant,
		Short: notionSyncCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runSync,
	})
	return command, nil
}

func (builder NotionCommandBuilder) runSync(command *cobra.Command, arguments []string) error {
	services, openError := openApplicationServices(builder.LoggerProvider(), builder.ConfigurationProvider())
	if openError != nil {
		return openError
	}
	defer services.Close()

	syncer, syncerError := services.notionSyncer()
	if syncerError != nil {
		return syncerError
	}
	if syncer == nil {
		return faults.PreconditionFailedError{Operation: notionSyncOperationConstant, Message: notionNotConfiguredConstant}
	}
	result, syncError := syncer.Sync(command.Context())
	if syncError != nil {
		return syncError
	}
	printer := newConsolePrinter(command.OutOrStdout())
	printer.Success(notionSyncedHeadingConstant)
	printer.Field(createdFieldLabelConstant, result.Created)
	printer.Field(updatedFieldLabelConstant, result.Updated)
	printer.Field(skippedFieldLabelConstant, result.Skipped)
	return nil
}

// GitHubCommandBuilder assembles the github command group.
type GitHubCommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() ApplicationConfiguration
}

// Build constructs the github command group.
func (builder GitHubCommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errLoggerProviderMissing
	}
	if builder.ConfigurationProvider == nil {
		return nil, errConfigurationProviderMissing
	}
	command := &cobra.Command{
		Use:   githubCommandUseConstant,
		Short: githubCommandShortConstant,
	}
	command.AddCommand(&cobra.Command{
		Use:   githubReposCommandUseConstant,
		Short: githubReposCommandShortConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.runRepositories,
	})
	return command, nil
}

func (builder GitHubCommandBuilder) runRepositories(command *cobra.Command, arguments []string) error {
	services, openError := openApplicationServices(builder.LoggerProvider(), builder.ConfigurationProvider())
	if openError != nil {
		return openError
	}
	defer services.Close()

	client, clientError := services.githubClient()
	if clientError != nil {
		return clientError
	}
	if client == nil {
		return faults.PreconditionFailedError{Operation: githubReposOperationConstant, Message: githubNotConfiguredConstant}
	}
	repositories, listError := client.ListRepositories(command.Context())
	if listError != nil {
		return listError
	}
	printer := newConsolePrinter(command.OutOrStdout())
	for _, repository := range repositories {
		visibility := githubPublicMarkerConstant
		if repository.Private {
			visibility = githubPrivateMarkerConstant
		}
		printer.Line(githubRepositoryTemplateConstant, repository.FullName, visibility)
	}
	return nil
}
