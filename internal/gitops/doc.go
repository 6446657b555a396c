// Package gitops provides the version-control backend for the patch workflow.
//
// The package exposes a narrow Client interface over the operations the
// orchestrator needs (status, branches, staging, commits, push, refs) with a
// production implementation backed by go-git and a DryRun decorator that
// simulates every mutating call while passing reads through. All calls are
// synchronous; the orchestrator serializes access to a single checkout.
package gitops
