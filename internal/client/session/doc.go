// Package session persists the client's authentication credential and the
// per-context dataset pointer, and tells other browsing contexts when the
// credential changes.
//
// # Storage layout
//
// Everything lives in the sqlite "storage" table (see package kv):
//
//	scope "local"          token, user (JSON), digest   durable, shared
//	scope "session:<id>"   latest_file (JSON)            one per browsing context
//
// Token and user are always written together in one transaction along with
// a BLAKE2b digest of both. A record with only one of them, an undecodable
// user, or a digest mismatch is reported as ErrCorrupt and callers treat it
// as "not logged in".
//
// # Change notifications
//
// Save and Clear publish an Event per key on the Bus. Like browser storage
// events, the context that made the change is not notified; every other
// subscriber is. LocalBus serves contexts in one process, RedisBus serves
// contexts in separate processes sharing one database file.
package session
