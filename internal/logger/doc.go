// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console or JSON encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// The engine, the correlators and the transport accept a context and extract
// the logger from it, so every line carries the component name and the
// override session it belongs to.
package logger
