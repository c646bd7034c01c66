// Package endpoint holds the registry of SMTP endpoints items are delivered
// through. Endpoints are deduplicated by their connection identity and looked
// up by the id assigned at registration.
package endpoint
