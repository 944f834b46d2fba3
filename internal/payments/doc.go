// Package payments connects billdesk customers to Stripe.
//
// Gateway creates Stripe customers and setup intents and keeps the local copy
// of each customer's cards in step with Stripe. WebhookProcessor verifies
// webhook deliveries and applies payment and card events to billing data.
package payments
