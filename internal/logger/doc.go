// Package logger wraps zap with a process-wide sugared logger and
// context-scoped helpers.
//
// Callers attach a named or annotated logger to a context with WithName and
// WithKV and log through the package functions (InfoKV, DebugKV, ...), which
// pick the logger up from the context and fall back to the global one.
// Output goes to stderr so that CLI commands can keep stdout for events.
package logger
