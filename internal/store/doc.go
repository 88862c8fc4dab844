// Package store defines the persistence contracts for tasks, assignments,
// users and comments, together with the sentinel errors shared by all
// implementations and a transaction helper.
package store
