// Package logger wraps zap to give the bootstrapper:
//   - a global sugared logger with a coloured console encoder,
//   - an optional rotated log file next to the console output,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag.
//
// Every service extracts its logger from the context it receives, so the
// step name travels with each line.
package logger
