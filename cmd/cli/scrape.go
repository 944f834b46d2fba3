package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	scrapeCommandUseConstant              = "scrape-email <url>"
	scrapeCommandShortConstant            = "Find contact email addresses on a website"
	scrapeCommandLongConstant             = "scrape-email fetches a site plus its /contact and /about pages and prints candidate addresses, addresses on the site's own domain first. With --customer the first candidate fills that customer's missing email."
	scrapeCustomerFlagNameConstant        = "customer"
	scrapeCustomerFlagUsageConstant       = "billdesk customer ID whose empty email should be filled."
	scrapeNoCandidatesMessageConstant     = "No addresses found"
	scrapeHeadingTemplateConstant         = "%d address(es) on %s"
	scrapeCustomerUpdatedTemplateConstant = "Customer %s email set to %s"
	scrapeCustomerKeptTemplateConstant    = "Customer %s already has email %s"
)

// ScrapeEmailCommandBuilder assembles the scrape-email command.
type ScrapeEmailCommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() ApplicationConfiguration
}

// Build constructs the scrape-email command.
func (builder ScrapeEmailCommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, errLoggerProviderMissing
	}
	if builder.ConfigurationProvider == nil {
		return nil, errConfigurationProviderMissing
	}
	command := &cobra.Command{
		Use:   scrapeCommandUseConstant,
		Short: scrapeCommandShortConstant,
		Long:  scrapeCommandLongConstant,
		Args:  cobra.ExactArgs(1),
		RunE:  builder.run,
	}
	command.Flags().String(scrapeCustomerFlagNameConstant, "", scrapeCustomerFlagUsageConstant)
	return command, nil
}

func (builder ScrapeEmailCommandBuilder) run(command *cobra.Command, arguments []string) error {
	logger := builder.LoggerProvider()
	configuration := builder.ConfigurationProvider()
	websiteURL := arguments[0]

	candidates, scrapeError := newScraper(logger, configuration.Scraper).Scrape(command.Context(), websiteURL)
	if scrapeError != nil {
		return scrapeError
	}

	printer := newConsolePrinter(command.OutOrStdout())
	if len(candidates) == 0 {
		printer.Line(plainLineTemplateConstant, scrapeNoCandidatesMessageConstant)
	} else {
		printer.Heading(scrapeHeadingTemplateConstant, len(candidates), websiteURL)
		for _, candidate := range candidates {
			printer.Line(plainLineTemplateConstant, candidate)
		}
	}

	customerID, _ := command.Flags().GetString(scrapeCustomerFlagNameConstant)
	if len(strings.TrimSpace(customerID)) == 0 || len(candidates) == 0 {
		return nil
	}

	services, openError := openApplicationServices(logger, configuration)
	if openError != nil {
		return openError
	}
	defer services.Close()

	customer, getError := services.billing.GetCustomer(command.Context(), strings.TrimSpace(customerID))
	if getError != nil {
		return getError
	}
	if len(customer.Email) > 0 {
		printer.Line(scrapeCustomerKeptTemplateConstant, customer.Name, customer.Email)
		return nil
	}
	customer.Email = candidates[0]
	if _, saveError := services.billing.SaveCustomer(command.Context(), customer); saveError != nil {
		return saveError
	}
	printer.Success(scrapeCustomerUpdatedTemplateConstant, customer.Name, customer.Email)
	return nil
}
