// The [bakersdozen] package is the data-access layer of the Bakers Dozen
// bakery inventory system: a client SDK that layers an offline cache,
// optimistic-write gating, and realtime change re-broadcast on top of the
// hosted backend.
//
// # Reads degrade, writes fail fast
//
// Read operations ([GetAll], [GetByID], [Query], [GetView]) never surface
// backend errors: when the backend is unreachable they serve the last cached
// snapshot, or an empty result if nothing was ever cached. Write operations
// ([Insert], [Update], [Delete]) are the opposite: while offline they fail
// with [ErrOffline] before any network call, and any backend error is
// returned to the caller. A write that silently "succeeded" against stale
// cache would corrupt data integrity expectations.
//
// # Cache
//
// Every successful fetch or mutation writes through to a snapshot in a
// [github.com/bakersdozen/bakersdozen.go/pkg/cache.Store]. Snapshots are
// versioned; see the cache package for the key scheme.
//
// # Realtime
//
// [DB.Subscribe] registers a callback that fires once per local mutation,
// synchronously after the cache write, and once per remote change event
// delivered on the live channels it registers. Notifications are hints to
// re-read state, not authoritative deltas: remote events arrive
// asynchronously with no ordering guarantee relative to local calls.
//
// # Concurrency
//
// There is no transaction or compare-and-swap across operations. Two
// concurrent updates to the same row race at the backend and the last write
// wins; the cache applies whichever response arrives last.
package bakersdozen
