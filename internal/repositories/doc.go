// Package repositories implements persistence for credentials, the desired addon list and run history.
//
// Key Implementations:
//   - [CredentialStore] : CSV file of email, password and cached auth_token, rewritten atomically
//   - [DesiredStateFile] : JSON or YAML list of addon descriptors
//   - [RunRepository] : SQLite history of runs and their per-account reports
//
// Run sequence numbers provide stable, human-readable ordering (run #42) independent of UUIDs and timestamps.
// Run numbers are claimed in the same transaction that inserts the run.
package repositories
