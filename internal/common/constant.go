// Package common contains constants, sentinel errors and helpers shared by
// the AssetTrack client packages.
package common

const (
	// AuthorizationHeaderName carries "Token <key>" on protected API calls.
	AuthorizationHeaderName = "Authorization"
	// TokenScheme is the authorization scheme the backend expects.
	TokenScheme = "Token"
	// RequestIDHeaderName tags every outbound request for log correlation.
	RequestIDHeaderName = "X-Request-ID"
)
