// Package logger wraps zap for the exporter:
//   - a global sugared logger writing console lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and switching for the --log-level flag.
//
// Export stages receive a context and log through it, so every line
// carries the platform and category being processed.
package logger
