// Package kv is the scoped key/value repository behind the session store.
//
// A scope groups keys with the same lifetime: the durable scope holds the
// credential shared by every browsing context, and each context owns an
// ephemeral scope for per-tab data such as the current dataset pointer.
package kv

import "context"

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte) error
	Delete(ctx context.Context, scope string, keys ...string) error
	List(ctx context.Context, scope string) (map[string][]byte, error)
	// ClearPrefix removes every key in every scope starting with prefix.
	ClearPrefix(ctx context.Context, prefix string) error
}
