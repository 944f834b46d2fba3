// Package server exposes billdesk over HTTP with gin.
//
// Public routes cover login, the Stripe webhook, quote requests and the published
// knowledge base. Everything else under /api requires a session cookie or a
// "Bearer bd_..." API key; API key management is limited to administrators.
// Domain errors map to status codes in one place: invalid input is 400,
// authentication failures 401, role failures 403, missing records 404 and
// unmet preconditions such as an unconfigured integration 412.
package server
