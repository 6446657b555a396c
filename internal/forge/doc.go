// Package forge provides the hosting-service collaborator for the patch
// workflow: pull-request and issue creation plus issue comments.
//
// The production implementation targets the GitHub API with automatic retry
// for rate limits and transient server errors. A DryRun decorator simulates
// all calls for testing and dry-run workflow executions.
package forge
