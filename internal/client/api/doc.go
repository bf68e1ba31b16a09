// Package api is the REST client for the asset-audit backend.
//
// # Overview
//
// Client wraps net/http with the conventions every call shares: a base URL,
// a per-request timeout, an "Authorization: Token <t>" header read fresh from
// a TokenSource on each request, and an X-Request-ID header for correlating
// client and server logs.
//
// # Error Handling
//
// Responses are mapped to sentinel errors that callers match with errors.Is:
// ErrUnavailable (no response), ErrUnauthorized (401/403 on a protected call),
// ErrInvalidCredentials (login rejected), ErrNotFound, ErrNoDataset. Anything
// else becomes a *StatusError carrying the server's message.
//
// An unauthorized response to a protected call also fires the OnUnauthorized
// hook, which the CLI wires to the auth manager's session-expired path.
package api
