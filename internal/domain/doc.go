// Package domain contains the core business entities and domain logic of the
// task assignment system: tasks, per-user assignments and their status
// lifecycle, users with their roles, and task comments. It is independent of
// any specific infrastructure or delivery mechanism.
package domain
