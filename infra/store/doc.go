// Package store provides the PostgreSQL-backed request store for
// deployments that need durability across restarts.
package store
