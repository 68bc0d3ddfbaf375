// Package jobs turns configured job entries into scheduler specs.
//
// A job's work is an external command (argv or /bin/sh -c) or a systemd unit
// operation. The Registry keeps configuration order and unique names so an
// isolated child process can find the job it was started for.
package jobs
