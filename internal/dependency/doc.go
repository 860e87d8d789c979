// Package dependency provides a small directed graph used to order the
// bootstrap steps of stackpilot.
//
// # Core Concepts
//
// Graph: nodes are bootstrap steps (tool installs and configuration steps),
// edges point from a step to the steps it depends on.
//
// Node: Represents a step in the dependency graph with:
//   - ID: the step name
//   - FriendlyName: Human-readable description
//   - Kind: tool, configure or service
//   - DependsOn: steps that must have succeeded first
//
// # Ordering
//
// TopologicalSort returns an order in which every step follows its
// dependencies. It is stable: among ready steps the one declared first runs
// first, so the declared order of the configuration (base runtime, package
// environment manager, database engine, inference daemon, language
// dependencies) is kept wherever dependencies allow. Cycles are reported as
// a *CycleError naming the steps involved.
//
// # Failure propagation
//
// TransitiveDependents answers which steps must be skipped when a step
// degrades: everything that depends on it, directly or indirectly.
package dependency
