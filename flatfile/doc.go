// Package flatfile provides a single-file table engine backed by bbolt.
//
// Each table lives in one bucket of identifier-keyed rows plus a metadata
// bucket holding the persisted layout. Rows are stored as JSON arrays of
// database-form values, so a table written by one process can be read by
// another as long as both agree on the layout.
package flatfile
