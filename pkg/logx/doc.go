// Package logx configures serialsched's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional Telegram sink (min-level + rate limiting) for operators
//
// Child processes spawned for isolated job execution build their logger from
// the same config, so their records land on the same streams as the parent's.
package logx
