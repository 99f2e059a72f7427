// Package logx configures schoolbell's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Every line in the bell log format: "[YYYY-MM-DD HH:MM:SS] message key=value..."
//   - One sink at a time: the configured log file (parent dirs created) or stdout
//   - A separate fallback file for fatal faults, independent of the configured sink
package logx
