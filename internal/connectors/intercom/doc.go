// Package intercom is the conversation provider client for the Intercom
// REST API.
//
// It searches conversations with cursor pagination, fetches full
// conversation threads and resolves contacts and admins. Every response is
// decoded into tagged wire structs and validated before it is converted to
// domain records, so a malformed payload surfaces as a
// *domain.ProviderError instead of a panic further down the pipeline.
//
// Clients are tenant scoped. Use Factory.ForTenant to build one from the
// tenant's stored settings.
package intercom
