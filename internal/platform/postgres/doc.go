// Package postgres provides PostgreSQL implementations of the store
// interfaces. Database errors are translated to the store package's sentinel
// errors so callers never depend on driver details.
package postgres
