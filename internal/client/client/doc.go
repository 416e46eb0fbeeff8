// Package client is the session guard's view of the hosted backend service.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (Client, QueryBuilder) covering session
//     retrieval, password sign-in, sign-out and single-row table lookups.
//  2. HTTPClient, which speaks the backend's REST dialect (auth endpoints
//     under /auth/v1, table endpoints under /rest/v1) and keeps the session
//     in a SessionStore.
//  3. PostgresQuerier, a direct Postgres implementation of the table lookups
//     for deployments that can reach the database.
//  4. Provider, the lazily constructed, shared client handle.
//
// # Error Handling
//
// Backend replies that are not 2xx surface as *APIError carrying the HTTP
// status and the backend's message. Transport failures wrap ErrUnavailable.
package client
