// Package tasks reconciles the addon collections of many Stremio accounts against one desired state.
//
// # Workflow
//
// Each account runs the same pipeline:
//
//  1. [Authenticator.Obtain] : reuse the cached token when it validates, else log in once
//  2. [ReconcileEngine.Plan] : list and classify installed addons, compute removals and installs
//  3. [ReconcileEngine.Apply] : remove undesired addons, then install missing desired ones
//
// A session rejected mid-pass is refreshed once and the pass re-run; work already applied is kept.
//
// # Concurrency
//
// [Orchestrator] drives one workflow per account on a fixed-size worker pool. Workflows share only
// the read-only desired state and the remote service; every account gets a terminal report, and
// a failure or panic in one never affects another.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, account, step counters, messages, and optional data.
package tasks
