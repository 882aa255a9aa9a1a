// Package queue persists dubbing jobs and their segments in SQLite and
// exposes helpers for driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, stale-claim recovery, and the compare-and-swap claims that keep
// each segment stage owned by at most one worker. Jobs capture source video
// metadata and artifact paths; segments capture per-chunk translation and
// synthesis state including attempt counts and retry backoff.
//
// The database is treated as transient storage for in-flight jobs rather than
// a long-term archive. Schema changes bump the version in schema.go; users
// clear the database to adopt the new schema.
package queue
