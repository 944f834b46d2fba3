package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/seed"
)

const (
	seedCommandUseConstant        = "seed"
	seedCommandShortConstant      = "Load fixture data"
	seedCommandLongConstant       = "seed loads customers, projects, invoices, quotes, questions and quote requests from a YAML fixture. Without --file the embedded demo fixture is used; customers whose email already exists are skipped."
	seedFileFlagNameConstant      = "file"
	seedFileFlagUsageConstant     = "Path to a YAML fixture."
	seedResetFlagNameConstant     = "reset"
	seedResetFlagUsageConstant    = "Delete every record before seeding."
	seedHeadingTemplateConstant   = "Seeded %s"
	seedEmbeddedFixtureConstant   = "embedded fixture"
	customersCreatedLabelConstant = "customers"
	customersSkippedLabelConstant = "skipped"
	projectsLabelConstant         = "projects"
	invoicesLabelConstant         = "invoices"
	quotesLabelConstant           = "quotes"
	questionsLabelConstant        = "questions"
	quoteRequestsLabelConstant    = "requests"
)

// SeedCommandBuilder assembles the seed command.
type SeedCommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() ApplicationConfiguration
}

// Build constructs the seed command.
func (builder SeedCommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errLoggerProviderMissing
	}
	if builder.ConfigurationProvider == nil {
		return nil, errConfigurationProviderMissing
	}
	command := &cobra.Command{
		Use:   seedCommandUseConstant,
		Short: seedCommandShortConstant,
		Long:  seedCommandLongConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	command.Flags().String(seedFileFlagNameConstant, "", seedFileFlagUsageConstant)
	command.Flags().Bool(seedResetFlagNameConstant, false, seedResetFlagUsageConstant)
	return command, nil
}

func (builder SeedCommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.LoggerProvider()
	fixturePath, _ := command.Flags().GetString(seedFileFlagNameConstant)
	resetRequested, _ := command.Flags().GetBool(seedResetFlagNameConstant)

	fixtureLabel := seedEmbeddedFixtureConstant
	var fixture seed.Fixture
	var fixtureError error
	if trimmedPath := strings.TrimSpace(fixturePath); len(trimmedPath) > 0 {
		fixtureLabel = trimmedPath
		fixture, fixtureError = seed.LoadFixture(trimmedPath)
	} else {
		fixture, fixtureError = seed.DefaultFixture()
	}
	if fixtureError != nil {
		return fixtureError
	}

	services, openError := openApplicationServices(logger, builder.ConfigurationProvider())
	if openError != nil {
		return openError
	}
	defer services.Close()

	seeder, seederError := seed.NewSeeder(logger, services.billing, services.questions, services.store, services.store)
	if seederError != nil {
		return seederError
	}
	summary, seedError := seeder.Seed(command.Context(), fixture, seed.Options{Reset: resetRequested})
	if seedError != nil {
		return seedError
	}

	printer := newConsolePrinter(command.OutOrStdout())
	printer.Success(seedHeadingTemplateConstant, fixtureLabel)
	printer.Field(customersCreatedLabelConstant, summary.CustomersCreated)
	printer.Field(customersSkippedLabelConstant, summary.CustomersSkipped)
	printer.Field(projectsLabelConstant, summary.Projects)
	printer.Field(invoicesLabelConstant, summary.Invoices)
	printer.Field(quotesLabelConstant, summary.Quotes)
	printer.Field(questionsLabelConstant, summary.Questions)
	printer.Field(quoteRequestsLabelConstant, summary.QuoteRequests)
	return nil
}
