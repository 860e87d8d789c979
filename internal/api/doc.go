// Package api holds the types shared between stackpilot's components: the
// bootstrap error taxonomy, per-step outcomes, the aggregate report returned
// to callers, and the service state vocabulary used by the supervisor.
//
// The package has no dependencies on other internal packages so that the
// installer, configurer, orchestrator and supervisor can all speak the same
// language without import cycles.
//
// # Error kinds
//
// Every failure inside a bootstrap step is classified with an ErrorKind:
//
//	NotFound            tool absent (triggers an install)
//	InstallFailed       installer exited non-zero
//	VerifyFailed        tool present but unusable after install
//	PermissionDenied    privilege escalation refused or cancelled
//	TimedOut            step exceeded its time budget
//	ConfigureFailed     configuration edit or command failed
//	DependencyFailed    step skipped because a prerequisite degraded
//	ProcessSpawnFailed  backend service could not be started
//
// A StepError carries the kind together with the step name and the wrapped
// cause, so callers can use errors.As or KindOf:
//
//	if api.KindOf(err) == api.KindPermissionDenied {
//	    logging.Warn("Installer", "privilege escalation refused for %s", name)
//	}
//
// # Reports
//
// The orchestrator collects one Outcome per step into a Report. Degraded
// outcomes never abort the run; the report is the structured surface the
// caller inspects afterwards.
package api
