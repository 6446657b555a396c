// Package validation implements the pre-flight validation runner for the
// patch workflow: required-tool discovery and caller-supplied test/lint
// command execution with a bounded timeout.
//
// The runner is an opaque blocking unit from the orchestrator's point of
// view. Commands may internally parallelize; the runner only reports the
// aggregate result.
package validation
