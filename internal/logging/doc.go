// Package logging builds slog loggers with curator's console and JSON
// handlers, plus shared attribute helpers and standardized field keys so
// components emit consistent structured output.
package logging
