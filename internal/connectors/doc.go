// Package connectors obtains OAuth access tokens for GitHub and Notion from
// the hosted connector broker, falling back to statically configured tokens.
package connectors
