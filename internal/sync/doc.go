// Package sync implements the offline-first replication engine between
// the local store and the remote habits service.
//
// # Architecture
//
// Local mutations flow outward through a durable queue; remote changes
// flow inward through full pulls and an incremental push channel:
//
//	user action → store write (local origin)
//	     └→ change capture → sync_queue (same transaction)
//	              └→ queue processor → remote upsert/delete
//
//	remote service → pull / realtime event
//	     └→ store write (remote origin, not re-captured)
//
// The origin tag on every store transaction is what keeps the two
// directions from feeding back into each other: remote-origin writes
// never produce queue entries, so a pulled row is not pushed straight
// back out.
//
// # Ordering and failure
//
// The queue drains strictly in enqueue order. When transmitting an item
// fails, the drain stops at that item; nothing after it is skipped or
// reordered, and the next trigger (periodic tick, enqueue kick, or
// reconnect) resumes from the oldest remaining item. Remote writes are
// idempotent upserts and keyed deletes, so the at-least-once delivery
// that results from a crash between transmission and queue-item removal
// is harmless.
//
// Pulls merge remote rows over local state with bulk upserts and never
// delete local rows, so a record created offline and still waiting in
// the queue survives a pull. Realtime events arriving while a pull is
// in flight are discarded; the pull supersedes them.
//
// # Usage
//
//	st, _ := store.Open(dbPath)
//	client := remote.New(remote.Config{BaseURL: url, APIKey: key})
//	orch := sync.NewOrchestrator(st, client, conn, sync.Options{})
//
//	orch.Start(ctx, userID) // at login
//	defer orch.Stop()       // at logout
//
// All sync activity is internally scheduled; failures are logged and
// retried opportunistically, never surfaced to the caller.
package sync
