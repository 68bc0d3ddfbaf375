// Package storage keeps the execution history: one record per dispatched job
// run. History is write-mostly and never feeds back into scheduling.
package storage
