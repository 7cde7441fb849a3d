// Package database provides the SQLite connection used by Prysma Core.
//
// It owns connection setup (WAL, busy timeout, foreign keys), a small
// transaction helper and forward/backward schema migrations read from
// MigrationsFS. The schema itself lives in the top-level migrations package.
//
// All queries use parameterised statements. The database file is created
// with 0600 permissions.
package database
