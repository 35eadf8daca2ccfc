// Package logx configures gamenewsbot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Component loggers live across config reloads (Service.Apply)
package logx
