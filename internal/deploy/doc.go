// Package deploy normalizes project lifecycle operations across hosting providers.
//
// Each provider subpackage (netlify, vercel, railway) implements Provider against
// its own API. Adapter adds the behavior shared by all of them: slug generation,
// the name collision retry loop, repository URL validation and idempotent deletes.
// Registry picks a provider by name and resolves its API token from a credential
// source.
package deploy
