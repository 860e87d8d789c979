// Package executor evaluates the check and action definitions of the
// configuration against the host.
//
// Checks never have side effects. A failing probe (missing binary, non-zero
// exit, unmatched output) is reported as false; only definitions that cannot
// be evaluated at all, such as broken templates, return an error.
//
// Actions render their templates when they run, ask the Elevator for
// credentials before privileged commands and run through a system.Runner, so
// tests substitute fakes for every host interaction.
package executor
