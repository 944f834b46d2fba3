package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/billdesk/internal/faults"
)

const (
	// DefaultTimeout bounds each page fetch.
	DefaultTimeout = 8 * time.Second
	// DefaultMaximumBodyBytes caps how much of each page is read.
	DefaultMaximumBodyBytes = 1 << 20

	websiteURLFieldNameConstant    = "websiteUrl"
	defaultSchemeConstant          = "https://"
	schemeSeparatorConstant        = "://"
	userAgentHeaderConstant        = "User-Agent"
	defaultUserAgentConstant       = "billdesk-email-scraper/1.0"
	acceptHeaderConstant           = "Accept"
	htmlAcceptConstant             = "text/html,application/xhtml+xml"
	invalidURLMessageConstant      = "must be an http or https URL with a host"
	fetchErrorTemplateConstant     = "fetch %s: %v"
	fetchStatusTemplateConstant    = "fetch %s: unexpected status %d"
	secondaryPageFailedConstant    = "secondary page fetch failed"
	scrapeCompletedMessageConstant = "email scrape completed"
	logFieldURLConstant            = "url"
	logFieldCandidatesConstant     = "candidates"
	logFieldErrorConstant          = "error"
	wwwPrefixConstant              = "www."
)

var secondaryPagePaths = []string{"/contact", "/about"}

// FetchError reports a page that could not be retrieved.
type FetchError struct {
	URL        string
	StatusCode int
	Cause      error
}

// Error describes the fetch failure.
func (fetchError FetchError) Error() string {
	if fetchError.Cause != nil {
		return fmt.Sprintf(fetchErrorTemplateConstant, fetchError.URL, fetchError.Cause)
	}
	return fmt.Sprintf(fetchStatusTemplateConstant, fetchError.URL, fetchError.StatusCode)
}

// Unwrap exposes the transport error.
func (fetchError FetchError) Unwrap() error {
	return fetchError.Cause
}

// Configuration tunes page fetching. Zero values take the package defaults.
type Configuration struct {
	Timeout          time.Duration
	MaximumBodyBytes int64
	UserAgent        string
	HTTPClient       *http.Client
}

// Scraper finds contact email addresses on a website.
type Scraper struct {
	logger        *zap.Logger
	configuration Configuration
}

// New constructs a Scraper.
func New(logger *zap.Logger, configuration Configuration) *Scraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if configuration.Timeout <= 0 {
		configuration.Timeout = DefaultTimeout
	}
	if configuration.MaximumBodyBytes <= 0 {
		configuration.MaximumBodyBytes = DefaultMaximumBodyBytes
	}
	if len(configuration.UserAgent) == 0 {
		configuration.UserAgent = defaultUserAgentConstant
	}
	if configuration.HTTPClient == nil {
		configuration.HTTPClient = &http.Client{}
	}
	return &Scraper{logger: logger, configuration: configuration}
}

// Scrape fetches websiteURL plus its /contact and /about pages and returns candidate addresses,
// addresses on the site's own domain first. Only a failure of the primary page is an error.
func (scraper *Scraper) Scrape(executionContext context.Context, websiteURL string) ([]string, error) {
	primaryURL, normalizeError := NormalizeWebsiteURL(websiteURL)
	if normalizeError != nil {
		return nil, normalizeError
	}

	primaryDocument, primaryError := scraper.fetch(executionContext, primaryURL.String())
	if primaryError != nil {
		return nil, primaryError
	}
	collector := newCollector()
	collector.addAll(Extract(primaryDocument))

	for _, pagePath := range secondaryPagePaths {
		pageURL := url.URL{Scheme: primaryURL.Scheme, Host: primaryURL.Host, Path: pagePath}
		pageDocument, pageError := scraper.fetch(executionContext, pageURL.String())
		if pageError != nil {
			scraper.logger.Debug(secondaryPageFailedConstant, zap.String(logFieldURLConstant, pageURL.String()), zap.String(logFieldErrorConstant, pageError.Error()))
			continue
		}
		collector.addAll(Extract(pageDocument))
	}

	candidates := OrderByDomain(collector.values(), primaryURL.Hostname())
	scraper.logger.Info(scrapeCompletedMessageConstant, zap.String(logFieldURLConstant, primaryURL.String()), zap.Int(logFieldCandidatesConstant, len(candidates)))
	return candidates, nil
}

// NormalizeWebsiteURL adds https:// when no scheme is present and rejects anything that is not http(s).
func NormalizeWebsiteURL(websiteURL string) (*url.URL, error) {
	trimmedURL := strings.TrimSpace(websiteURL)
	if len(trimmedURL) == 0 {
		return nil, faults.Required(websiteURLFieldNameConstant)
	}
	if !strings.Contains(trimmedURL, schemeSeparatorConstant) {
		trimmedURL = defaultSchemeConstant + trimmedURL
	}
	parsedURL, parseError := url.Parse(trimmedURL)
	if parseError != nil || len(parsedURL.Hostname()) == 0 || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return nil, faults.InvalidInputError{FieldName: websiteURLFieldNameConstant, Message: invalidURLMessageConstant}
	}
	return parsedURL, nil
}

// OrderByDomain moves addresses on siteHost (or its subdomains) ahead of the rest, keeping relative order.
func OrderByDomain(emails []string, siteHost string) []string {
	siteDomain := strings.TrimPrefix(strings.ToLower(siteHost), wwwPrefixConstant)
	ordered := make([]string, 0, len(emails))
	var others []string
	for _, email := range emails {
		if matchesDomain(emailDomain(email), siteDomain) {
			ordered = append(ordered, email)
			continue
		}
		others = append(others, email)
	}
	return append(ordered, others...)
}

func (scraper *Scraper) fetch(executionContext context.Context, pageURL string) (string, error) {
	requestContext, cancel := context.WithTimeout(executionContext, scraper.configuration.Timeout)
	defer cancel()

	request, requestError := http.NewRequestWithContext(requestContext, http.MethodGet, pageURL, nil)
	if requestError != nil {
		return "", FetchError{URL: pageURL, Cause: requestError}
	}
	request.Header.Set(userAgentHeaderConstant, scraper.configuration.UserAgent)
	request.Header.Set(acceptHeaderConstant, htmlAcceptConstant)

	response, responseError := scraper.configuration.HTTPClient.Do(request)
	if responseError != nil {
		return "", FetchError{URL: pageURL, Cause: responseError}
	}
	defer response.Body.Close()
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return "", FetchError{URL: pageURL, StatusCode: response.StatusCode}
	}
	body, readError := io.ReadAll(io.LimitReader(response.Body, scraper.configuration.MaximumBodyBytes))
	if readError != nil && !errors.Is(readError, io.EOF) {
		return "", FetchError{URL: pageURL, Cause: readError}
	}
	return string(body), nil
}

type collector struct {
	seen    map[string]struct{}
	ordered []string
}

func newCollector() *collector {
	return &collector{seen: map[string]struct{}{}}
}

func (emailCollector *collector) addAll(emails []string) {
	for _, email := range emails {
		if _, duplicate := emailCollector.seen[email]; duplicate {
			continue
		}
		emailCollector.seen[email] = struct{}{}
		emailCollector.ordered = append(emailCollector.ordered, email)
	}
}

func (emailCollector *collector) values() []string {
	return emailCollector.ordered
}

func emailDomain(email string) string {
	atIndex := strings.LastIndex(email, "@")
	if atIndex < 0 {
		return ""
	}
	return email[atIndex+1:]
}

func matchesDomain(domain string, parentDomain string) bool {
	if len(domain) == 0 || len(parentDomain) == 0 {
		return false
	}
	return domain == parentDomain || strings.HasSuffix(domain, "."+parentDomain)
}
