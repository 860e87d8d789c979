// Package orchestrator runs the bootstrap of stackpilot.
//
// A bootstrap is a list of steps: tool installs (see package installer)
// followed by configuration steps (see package envconfig). The orchestrator
// orders them with the dependency graph from package dependency, keeping
// declaration order wherever dependencies allow, and runs them one after the
// other.
//
// # Fault isolation
//
// Every step produces an api.Outcome. A failing step never aborts the run:
// its outcome is recorded as degraded and the next step runs. Steps that
// depend on a degraded step are recorded as skipped with reason
// DependencyFailed, so independent branches (for example the inference
// daemon when the database engine failed) still complete.
//
// Each step runs under Config.StepTimeout; a step cut short by it is
// reported as TimedOut.
//
// # Runs
//
//   - Bootstrap performs the steps. Concurrent calls share a single run.
//   - Check reports presence and pending configuration without side effects.
//
// Both return an api.Report identified by a fresh run ID.
//
// # Progress
//
// SubscribeToProgress returns a buffered channel of ProgressEvent values.
// Publishing never blocks; slow subscribers miss events.
package orchestrator
