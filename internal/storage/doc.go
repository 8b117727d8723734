// Package storage provides the durable, origin-scoped key-value store the session lives in.
//
// [Store] is the capability business logic depends on: Get, Set and Remove on string keys.
// Implementations:
//   - [MemoryStore] : in-process map with injectable failures, used by tests and as a degraded fallback
//   - [SQLiteStore] : kv_store table partitioned by namespace; [SQLiteStore.Scope] yields one origin's view
//
// Stores that can write several keys atomically also implement [Batcher].
// All errors wrap [shared.ErrStorage].
package storage
