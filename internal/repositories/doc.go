// Package repositories implements the session-keyed credential stores behind [models.CredentialStore].
//
// Key Implementations:
//   - [MemoryStore] : process-local map, used by tests and single-shot CLI runs
//   - [SQLiteStore] : sessions table created by the embedded migrations in the shared package
//   - [RedisStore] : JSON values with a sliding TTL, for deployments running more than one server
//
// [Open] picks the backend from the store.driver config key. Every backend returns [shared.ErrSessionNotFound] from
// Get when no credential is stored, and treats Delete of a missing session as success.
package repositories
