package agent

// schedMode mirrors the scheduler's two modes as observed from the agent
// side (spec.md §3 "scheduler_mode (observed)"). It is a distinct type
// from wire.MessageType because the agent only ever learns the mode from
// an incoming SCHED_ON/SCHED_OFF frame and never constructs one itself.
type schedMode uint8

const (
	antiThrash schedMode = iota
	permissive
)
