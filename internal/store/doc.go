// Package store persists dispatch journals in SQLite.
//
// Every effect a driver dispatches is recorded as one dispatch row:
// run ID, sequence number, effect kind, canonical payload, and the
// outcome that came back. The journal serves three purposes: audit of
// what a program actually did, replay of a recorded run against live
// runners to detect drift, and a durable record for the db runner's
// own test fixtures.
//
// Writes are idempotent on (run_id, seq); replaying a crashed driver's
// journal writes never duplicates rows.
package store
