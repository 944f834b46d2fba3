package pathutils

import (
	"errors"
	"strings"
)

const (
	sqliteSchemePrefixConstant       = "sqlite://"
	sqlite3SchemePrefixConstant      = "sqlite3://"
	fileSchemePrefixConstant         = "file:"
	memoryLocationConstant           = ":memory:"
	queryDelimiterConstant           = "?"
	emptyLocationMessageConstant     = "database location is empty"
	unsupportedSchemeMessageConstant = "unsupported database scheme; expected a sqlite path"
	schemeSeparatorConstant          = "://"
)

// ErrUnsupportedDatabaseScheme indicates a database URL that does not point at sqlite.
var ErrUnsupportedDatabaseScheme = errors.New(unsupportedSchemeMessageConstant)

// DatabaseLocation is a resolved sqlite file path plus optional driver query parameters.
type DatabaseLocation struct {
	Path  string
	Query string
}

// InMemory reports whether the location refers to a transient in-memory database.
func (location DatabaseLocation) InMemory() bool {
	return location.Path == memoryLocationConstant
}

// DataSourceName renders the location for the sqlite driver.
func (location DatabaseLocation) DataSourceName() string {
	if len(location.Query) == 0 {
		return location.Path
	}
	return fileSchemePrefixConstant + location.Path + queryDelimiterConstant + location.Query
}

// ResolveDatabaseLocation accepts sqlite://path, file:path, or a plain path and expands a leading tilde.
func ResolveDatabaseLocation(expander *HomeExpander, databaseURL string) (DatabaseLocation, error) {
	trimmedURL := strings.TrimSpace(databaseURL)
	if len(trimmedURL) == 0 {
		return DatabaseLocation{}, errors.New(emptyLocationMessageConstant)
	}

	switch {
	case strings.HasPrefix(trimmedURL, sqliteSchemePrefixConstant):
		trimmedURL = strings.TrimPrefix(trimmedURL, sqliteSchemePrefixConstant)
	case strings.HasPrefix(trimmedURL, sqlite3SchemePrefixConstant):
		trimmedURL = strings.TrimPrefix(trimmedURL, sqlite3SchemePrefixConstant)
	case strings.HasPrefix(trimmedURL, fileSchemePrefixConstant):
		trimmedURL = strings.TrimPrefix(trimmedURL, fileSchemePrefixConstant)
	case strings.Contains(trimmedURL, schemeSeparatorConstant):
		return DatabaseLocation{}, ErrUnsupportedDatabaseScheme
	}

	location := DatabaseLocation{Path: trimmedURL}
	if queryIndex := strings.Index(trimmedURL, queryDelimiterConstant); queryIndex >= 0 {
		location.Path = trimmedURL[:queryIndex]
		location.Query = trimmedURL[queryIndex+1:]
	}
	if len(location.Path) == 0 {
		return DatabaseLocation{}, errors.New(emptyLocationMessageConstant)
	}
	location.Path = expander.Expand(location.Path)
	return location, nil
}
