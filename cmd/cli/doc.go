// Package cli constructs the billdesk command-line interface, wiring the
// Cobra command hierarchy, configuration loader, and structured logging
// around the HTTP API, seeding, deploy, scraping and integration commands.
package cli
