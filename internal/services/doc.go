// Package services defines the shared error taxonomy used across curator
// components. Errors are tagged with sentinel markers so callers can decide
// retry behavior with errors.Is instead of string matching.
package services
