// Package tasksync exposes build-level metadata for the tasksync tool.
package tasksync

// Version is the current tasksync release version.
const Version = "0.3.0"
