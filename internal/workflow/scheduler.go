package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

// stallMessage is recorded when a round makes no progress while steps
// remain pending.
const stallMessage = "workflow stalled: possible circular dependency or unmet condition"

// Step is one schedulable unit. Dependencies name step IDs that must have
// resolved (successfully or with a recorded error) before this step runs;
// Condition, when present, must evaluate true against the accumulated state.
type Step struct {
	ID           string
	Dependencies []string
	Condition    func(State) bool
	Run          func(ctx context.Context, st State) (State, error)
}

// Scheduler executes a step graph in rounds. Each round runs every currently
// runnable step in declaration order and merges its partial result into the
// shared state immediately, so later steps in the same round observe it.
type Scheduler struct {
	log    *logger.Logger
	tracer trace.Tracer
}

func NewScheduler(log *logger.Logger) *Scheduler {
	return &Scheduler{
		log:    log.With("component", "Scheduler"),
		tracer: otel.Tracer("workflow"),
	}
}

// Run drives the graph to completion. Step failures are recorded in the
// state's error list and the step still counts as resolved, unblocking its
// dependents (liveness over strict failure propagation). A round with zero
// progress and remaining steps terminates with a stall record instead of
// looping forever. The returned error is reserved for programmer mistakes.
func (s *Scheduler) Run(ctx context.Context, steps []Step, initial State) (State, error) {
	final, err := s.run(ctx, steps, initial, nil)
	return final, err
}

// Stream is the progressive variant: it yields a snapshot after every
// completed step and terminates with the final state. The channel is closed
// when the workflow resolves; the sequence is finite and non-restartable.
func (s *Scheduler) Stream(ctx context.Context, steps []Step, initial State) <-chan State {
	out := make(chan State)
	go func() {
		defer close(out)
		emit := func(st State) {
			select {
			case out <- st.Clone():
			case <-ctx.Done():
			}
		}
		final, err := s.run(ctx, steps, initial, emit)
		if err != nil {
			final = initial.withError("scheduler", err)
		}
		emit(final)
	}()
	return out
}

func (s *Scheduler) run(ctx context.Context, steps []Step, initial State, emit func(State)) (State, error) {
	if err := validateGraph(steps); err != nil {
		return initial, err
	}

	ctx, span := s.tracer.Start(ctx, "workflow.schedule",
		trace.WithAttributes(attribute.Int("workflow.steps", len(steps))))
	defer span.End()

	state := initial.Clone()
	resolved := make(map[string]bool, len(steps))

	for len(resolved) < len(steps) {
		if err := ctx.Err(); err != nil {
			state = state.withError("scheduler", err)
			state[KeyCompleted] = false
			state[KeyStatus] = StatusPartial
			return state, nil
		}

		progress := false
		for _, step := range steps {
			if resolved[step.ID] || !s.runnable(step, resolved, state) {
				continue
			}
			state = s.runStep(ctx, step, state)
			resolved[step.ID] = true
			progress = true
			if emit != nil {
				emit(state)
			}
		}

		if !progress {
			s.log.Warn("scheduler stalled",
				"resolved", len(resolved),
				"remaining", len(steps)-len(resolved),
			)
			state = state.withError("scheduler", fmt.Errorf("%s", stallMessage))
			state[KeyCompleted] = false
			state[KeyStatus] = StatusStalled
			return state, nil
		}
	}

	return state.finalize(), nil
}

func (s *Scheduler) runnable(step Step, resolved map[string]bool, state State) bool {
	for _, dep := range step.Dependencies {
		if !resolved[dep] {
			return false
		}
	}
	if step.Condition != nil && !step.Condition(state) {
		return false
	}
	return true
}

// runStep executes one step with panic isolation; a throwing step becomes a
// recorded error and the step is still marked resolved by the caller.
func (s *Scheduler) runStep(ctx context.Context, step Step, state State) (out State) {
	ctx, span := s.tracer.Start(ctx, "workflow.step",
		trace.WithAttributes(attribute.String("step.id", step.ID)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("step panic", "step", step.ID, "panic", r)
			out = state.withError(step.ID, fmt.Errorf("panic: %v", r))
		}
	}()

	snapshot := state.Clone()
	snapshot[KeyCurrentStep] = step.ID
	partial, err := step.Run(ctx, snapshot)
	if err != nil {
		s.log.Warn("step failed", "step", step.ID, "error", err)
		out = state.withError(step.ID, err)
		out[KeyCurrentStep] = step.ID
		return out
	}
	out = state.Merge(partial)
	out[KeyCurrentStep] = step.ID
	return out
}

// validateGraph rejects duplicate and dangling step IDs up front; these are
// programmer errors, not capability failures.
func validateGraph(steps []Step) error {
	ids := make(map[string]bool, len(steps))
	for _, st := range steps {
		if st.ID == "" {
			return fmt.Errorf("step with empty id")
		}
		if ids[st.ID] {
			return fmt.Errorf("duplicate step id %q", st.ID)
		}
		if st.Run == nil {
			return fmt.Errorf("step %q has no run function", st.ID)
		}
		ids[st.ID] = true
	}
	for _, st := range steps {
		for _, dep := range st.Dependencies {
			if !ids[dep] {
				return fmt.Errorf("step %q depends on unknown step %q", st.ID, dep)
			}
		}
	}
	return nil
}
