// Package gitrepo parses GitHub repository references.
//
// Deploy providers and the GitHub client identify repositories by owner and
// name; ParseGitHubURL extracts both from the URL shapes users paste into the
// dashboard.
package gitrepo
