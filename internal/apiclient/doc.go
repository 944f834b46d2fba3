// Package apiclient issues authenticated JSON requests to third-party APIs.
//
// GitHub, Notion, Netlify, Vercel, Railway and the connector broker all go
// through Client so that timeouts, bearer authentication and provider error
// messages are handled in one place.
package apiclient
