// Package cli holds the serialsched cobra commands: run (the daemon),
// validate, next, history and the hidden exec used for isolated runs.
package cli
