package lifecycle

import (
	"context"
	"fmt"
)

// GuardFunc evaluates whether a configured transition may fire.
type GuardFunc func(ctx context.Context) bool

// Machine tracks an inspection's current status and validates transitions.
type Machine interface {
	// Status returns the current status.
	Status() Status

	// CanFire returns true if the trigger is permitted in the current
	// status.
	CanFire(trigger Trigger) bool

	// Fire attempts the trigger, moving to the target status if allowed.
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns the triggers that can fire in the current
	// status.
	PermittedTriggers() []Trigger
}

// Builder configures the transition table once and stamps out machine
// instances at any initial status.
type Builder struct {
	table map[Status]map[Trigger][]transition
}

type transition struct {
	target Status
	guard  GuardFunc
}

// NewBuilder creates an empty transition-table builder.
func NewBuilder() *Builder {
	return &Builder{table: make(map[Status]map[Trigger][]transition)}
}

// Permit allows trigger to move from into target unconditionally.
func (b *Builder) Permit(from Status, trigger Trigger, target Status) *Builder {
	return b.PermitIf(from, trigger, target, nil)
}

// PermitIf allows trigger to move from into target when guard passes.
func (b *Builder) PermitIf(from Status, trigger Trigger, target Status, guard GuardFunc) *Builder {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid source status: %s", from))
	}
	if !target.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", target))
	}

	if b.table[from] == nil {
		b.table[from] = make(map[Trigger][]transition)
	}
	b.table[from][trigger] = append(b.table[from][trigger], transition{target: target, guard: guard})
	return b
}

// Build creates a machine instance at the given initial status. The
// transition table is copied so later builder mutations cannot leak in.
func (b *Builder) Build(initial Status) (Machine, error) {
	if !initial.IsValid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, initial)
	}

	table := make(map[Status]map[Trigger][]transition, len(b.table))
	for from, triggers := range b.table {
		copied := make(map[Trigger][]transition, len(triggers))
		for trigger, transitions := range triggers {
			copied[trigger] = append([]transition(nil), transitions...)
		}
		table[from] = copied
	}

	return &machine{current: initial, table: table}, nil
}

type machine struct {
	current Status
	table   map[Status]map[Trigger][]transition
}

func (m *machine) Status() Status { return m.current }

func (m *machine) CanFire(trigger Trigger) bool {
	return len(m.table[m.current][trigger]) > 0
}

func (m *machine) Fire(ctx context.Context, trigger Trigger) error {
	transitions := m.table[m.current][trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.target
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from %s", ErrGuardFailed, trigger, m.current)
}

func (m *machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.table[m.current]))
	for trigger := range m.table[m.current] {
		triggers = append(triggers, trigger)
	}
	return triggers
}

// NewInspectionMachine builds the standard inspection lifecycle at the
// given initial status:
//
//	Requested -> (take) -> Pending -> (submit report) -> ReportSubmitted
func NewInspectionMachine(initial Status) (Machine, error) {
	return NewBuilder().
		Permit(StatusRequested, TriggerTake, StatusPending).
		Permit(StatusPending, TriggerSubmitReport, StatusReportSubmitted).
		Build(initial)
}
