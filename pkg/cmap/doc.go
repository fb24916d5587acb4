// Package cmap provides a string-keyed sharded concurrent map.
//
// It is used for per-peer registries (login limiters, live connections)
// that are touched from many connection goroutines at once.
//
//   - Sharding: power-of-two shard count, maphash distribution
//   - Fine-grained Locking: per-shard RWMutex
//   - GetOrCreate: double-checked insert under the shard lock
//
// Usage:
//
//	m := cmap.New[*rate.Limiter]()
//	l := m.GetOrCreate(host, func() *rate.Limiter { return rate.NewLimiter(5, 5) })
package cmap
