package supervisor

// State is one point in the per-container spawn state machine described
// in spec.md §4.D. Spawn logs and traces each transition as it passes
// through these states (see transition in supervisor.go); the pipeline
// itself is still driven by Spawn's linear control flow, not a
// state-table dispatcher — State exists for observability, not dispatch.
type State string

const (
	Requested       State = "Requested"
	ValidatingPorts State = "Validating(ports)"
	ImageReady      State = "ImageReady"
	ExecutorSpawned State = "ExecutorSpawned"
	HelperSpawned   State = "HelperSpawned"
	HelperReachable State = "HelperReachable"
	Forwarded       State = "Forwarded"
	Live            State = "Live"
	Terminating     State = "Terminating"
	Gone            State = "Gone"
)

// Failed is not a fixed State value: spec.md §9 models it as
// Failed(reason), reachable from every state before Live. Callers get the
// reason as Spawn's returned error instead of a separate state value.
