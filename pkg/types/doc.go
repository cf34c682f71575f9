// Package types defines the canonical task model, the source adapter
// contract, sync-state records, planned operations, and standard errors
// shared by the tasksync reconciliation engine.
package types
