// Package scheduler holds the serial dispatch loop.
//
// A Scheduler owns an ordered set of Producers (one per job). Each Producer
// computes its own due times, either on an epoch-aligned interval grid or from
// a cron expression. The loop repeatedly picks the earliest due Producer,
// waits for it in cancellable one-second steps, advances its schedule and hands
// the job to an engine.Runner, blocking until that execution is over. At most
// one job executes at any instant.
//
// Execution itself (timeouts, panics, process isolation) lives in
// internal/task/engine.
package scheduler
