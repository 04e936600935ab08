// Package memtable provides an in-process memory table engine and a
// coarse-locking facade that makes it safe for concurrent use.
//
// Table itself is single-threaded by design: no operation takes a lock.
// Synced wraps one Table with one instance-wide mutex held for the full
// duration of every operation, so multi-row batch writes are atomic with
// respect to concurrent readers and writers of the same instance. The lock
// never spans multiple calls; multi-step atomicity requires the batch
// forms. Direct access to a wrapped Table bypasses the lock and is a
// convention violation, not something the types prevent.
package memtable
