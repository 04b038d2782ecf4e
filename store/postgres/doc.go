// Package postgres implements the research backend using pgx/v5 with raw
// SQL.
//
// Jobs live in the research_jobs table. The canonical job for a key is
// the most recently created row for that key, so a follow-up that inserts
// a new row rotates the canonical id. Producers publish updates with
// pg_notify on the researchsync_updates channel; Store.Listen relays them
// to Subscribe callbacks, which makes the Store a push.Subscriber as well
// as a job.Backend.
package postgres
