// Package installer ensures that the tools of the application stack are
// installed.
//
// Every tool is a ToolSpec with three operations: Present checks for an
// existing installation, Install puts one in place and Verify confirms the
// result. Ensure drives one spec through the state machine
//
//	absent → installing → verified
//	       ↘ verified           (already present, Install never invoked)
//	any    → degraded           (with an api.ErrorKind reason)
//
// A Registry keeps specs in declaration order; later specs may assume that
// earlier ones are installed.
package installer
