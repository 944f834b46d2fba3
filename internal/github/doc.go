// Package github lists and validates repositories through the GitHub REST API.
package github
