package gitrepo

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	gitHubHostConstant                   = "github.com"
	httpsURLTemplateConstant             = "https://%s/%s/%s"
	fullNameTemplateConstant             = "%s/%s"
	parseErrorTemplateConstant           = "%s: %s"
	requiredValueMessageConstant         = "value required"
	notGitHubRepositoryMessageConstant   = "not a GitHub repository url"
	gitHubURLPatternConstant             = `^(?:(?:https?|git|ssh)://)?(?:[^@/]+@)?(?:www\.)?github\.com[:/]([A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)/([A-Za-z0-9._-]+?)(?:\.git)?(?:[/?#].*)?$`
	repositoryNameReservedValueConstant  = "."
	repositoryNameReservedParentConstant = ".."
)

var gitHubURLPattern = regexp.MustCompile(gitHubURLPatternConstant)

// Repository identifies a GitHub repository.
type Repository struct {
	Owner string
	Name  string
}

// FullName renders owner/name.
func (repository Repository) FullName() string {
	return fmt.Sprintf(fullNameTemplateConstant, repository.Owner, repository.Name)
}

// HTTPSURL renders the canonical browser URL.
func (repository Repository) HTTPSURL() string {
	return fmt.Sprintf(httpsURLTemplateConstant, gitHubHostConstant, repository.Owner, repository.Name)
}

// URLParseError indicates a value that does not name a GitHub repository.
type URLParseError struct {
	Input   string
	Message string
}

// Error describes the parse failure.
func (parseError URLParseError) Error() string {
	return fmt.Sprintf(parseErrorTemplateConstant, parseError.Input, parseError.Message)
}

// ParseGitHubURL extracts owner and repository from https, ssh and scp-style GitHub URLs.
// A trailing ".git" and any path after the repository segment are ignored.
func ParseGitHubURL(rawURL string) (Repository, error) {
	trimmedURL := strings.TrimSpace(rawURL)
	if len(trimmedURL) == 0 {
		return Repository{}, URLParseError{Input: rawURL, Message: requiredValueMessageConstant}
	}
	matches := gitHubURLPattern.FindStringSubmatch(trimmedURL)
	if matches == nil {
		return Repository{}, URLParseError{Input: rawURL, Message: notGitHubRepositoryMessageConstant}
	}
	repositoryName := matches[2]
	if repositoryName == repositoryNameReservedValueConstant || repositoryName == repositoryNameReservedParentConstant {
		return Repository{}, URLParseError{Input: rawURL, Message: notGitHubRepositoryMessageConstant}
	}
	return Repository{Owner: matches[1], Name: repositoryName}, nil
}
