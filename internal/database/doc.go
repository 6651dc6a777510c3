// Package database opens the PostgreSQL pool backing the alert journal.
//
// The journal is optional; when it is disabled no pool is created and the
// realtime path never touches the database.
package database
