// Package api contains the HTTP handlers: the intent endpoint the chat
// gateway posts structured commands to, and the task read endpoints. Error
// mapping keeps internal error detail out of responses.
package api
