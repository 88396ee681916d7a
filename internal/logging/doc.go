// Package logging wraps Zap with context-aware logging for contextos.
//
// Every log method takes a context.Context; correlation fields (trace and
// span ids from OpenTelemetry, plus the agent, session and decision ids
// this library threads through contexts) are appended automatically.
// Output goes to stdout (json or console) and, optionally, to an
// OpenTelemetry log provider through the otelzap bridge.
package logging
