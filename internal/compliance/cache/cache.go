// Package cache provides the result caches used by the policy checker
// and the regulatory monitor. Values are serialized JSON strings; an
// empty string signals a miss.
package cache

import "context"

// Store is a namespaced string cache. Namespaces separate policy
// results from regulatory results so they can share one backend.
type Store interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key, val string) error
	Purge(ctx context.Context, name, key string) error
	// PurgeAll drops every entry across all namespaces. Rule and
	// regulation mutations invalidate conservatively through this.
	PurgeAll(ctx context.Context) error
}
