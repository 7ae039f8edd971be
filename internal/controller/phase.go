package controller

// Phase describes why the last enforcement decision took its shape.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDisabled
	PhaseEnforcing
	PhaseBreakerOpen
	PhaseOverrideActive
	PhaseDryRun
)

func (p Phase) String() string {
	switch p {
	case PhaseDisabled:
		return "disabled"
	case PhaseEnforcing:
		return "enforcing"
	case PhaseBreakerOpen:
		return "breaker_open"
	case PhaseOverrideActive:
		return "override_active"
	case PhaseDryRun:
		return "dry_run"
	default:
		return "idle"
	}
}

// Health tracks connectivity status, independent of Phase.
type Health int

const (
	HealthOK Health = iota
	HealthDegraded
	HealthBreakerOpen
)

func (h Health) String() string {
	switch h {
	case HealthDegraded:
		return "degraded"
	case HealthBreakerOpen:
		return "breaker_open"
	default:
		return "ok"
	}
}
