// Package postgres contains the PostgreSQL implementations of the
// store interfaces. All implementations accept a store.DBTX so they
// can run against a plain connection pool or inside a transaction.
package postgres
