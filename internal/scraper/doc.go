// Package scraper finds contact email addresses on a customer's website.
package scraper
