// Package fetch turns a narrow and an anchor into one page of message ids.
//
// A fetch runs in stages: the narrow is normalized, the history policy
// picks the base query, the compiler appends the narrow's conditions, and
// the anchor window is planned as one or two limited selects. Only then is
// storage queried; the rows are trimmed to the requested window by
// PostProcess.
//
// All stages but execution are pure. Engine wires them to a Backend and
// adds logging, metrics and tracing.
package fetch
