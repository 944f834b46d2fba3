// Package utils holds the process plumbing shared by the billdesk commands:
// layered configuration loading, zap logger construction and path resolution
// for the sqlite database and fixture files.
package utils
