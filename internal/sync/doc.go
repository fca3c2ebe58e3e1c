// Package sync reconciles locally-persisted-but-unsynced records
// against the remote store.
//
// Each sync run works on a snapshot of the local store's unsynced set.
// Per record, the remote insert outcome is classified three ways:
//
//	Inserted      -> mark local synced, counted as fresh
//	AlreadyExists -> mark local synced, counted as duplicate
//	Failed        -> leave unsynced, counted as failed, retried next run
//
// The duplicate path is what makes the run crash-safe: a crash between
// the remote insert and the local mark leaves the record unsynced, and
// the next run finds it AlreadyExists and heals it. No distributed
// transaction is needed.
//
// Failures are per-record and isolated; one bad record never aborts
// the run. The only whole-run abort is an unreachable (or
// unconfigured) remote, detected before any record is touched.
//
// Runs are not re-entrant: a second Run against the same engine while
// one is in progress returns ErrRunInProgress rather than
// double-processing the same snapshot.
package sync
