package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

// PipeStep is one stage of a fixed, named pipeline. Output threads through
// the shared state: each step reads what its predecessors merged in.
type PipeStep struct {
	Name     string
	Required bool
	Skip     func(State) bool
	Run      func(ctx context.Context, st State) (State, error)
}

// Orchestrator executes the named pipelines in declared order. Every step is
// wrapped in a per-step timeout race that is independent of the agents' own
// per-attempt timeouts.
type Orchestrator struct {
	log         *logger.Logger
	stepTimeout time.Duration
	tracer      trace.Tracer
}

func NewOrchestrator(log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		log:         log.With("component", "Orchestrator"),
		stepTimeout: envutil.Dur("WORKFLOW_STEP_TIMEOUT", 60*time.Second),
		tracer:      otel.Tracer("workflow"),
	}
}

// Execute runs the pipeline. Failures accumulate as StepError records; a
// failed required step or a step timeout aborts the remainder, but whatever
// earlier steps produced is still returned for graceful degradation.
func (o *Orchestrator) Execute(ctx context.Context, steps []PipeStep, initial State) State {
	ctx, span := o.tracer.Start(ctx, "workflow.pipeline",
		trace.WithAttributes(attribute.Int("workflow.steps", len(steps))))
	defer span.End()

	state := initial.Clone()
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			state = state.withError(step.Name, err)
			break
		}
		if step.Skip != nil && step.Skip(state) {
			o.log.Debug("step skipped", "step", step.Name)
			continue
		}

		state[KeyCurrentStep] = step.Name
		partial, err := o.runStep(ctx, step, state)
		if err != nil {
			state = state.withError(step.Name, err)
			timedOut := isStepTimeout(err)
			if step.Required || timedOut {
				o.log.Warn("pipeline aborted",
					"step", step.Name,
					"timeout", timedOut,
					"error", err,
				)
				break
			}
			continue
		}
		state = state.Merge(partial)
	}
	return state.finalize()
}

type stepTimeoutError struct{ step string; after time.Duration }

func (e *stepTimeoutError) Error() string {
	return fmt.Sprintf("step %s did not resolve within %s", e.step, e.after)
}

func isStepTimeout(err error) bool {
	_, ok := err.(*stepTimeoutError)
	return ok
}

// runStep races the step against the orchestrator's own timeout. When the
// race fires, the in-flight work is abandoned, not cancelled: the buffered
// channel lets any late result arrive and be discarded.
func (o *Orchestrator) runStep(ctx context.Context, step PipeStep, state State) (State, error) {
	ctx, span := o.tracer.Start(ctx, "workflow.step",
		trace.WithAttributes(attribute.String("step.id", step.Name)))
	defer span.End()

	type outcome struct {
		partial State
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		partial, err := step.Run(ctx, state.Clone())
		done <- outcome{partial: partial, err: err}
	}()

	select {
	case out := <-done:
		return out.partial, out.err
	case <-time.After(o.stepTimeout):
		return nil, &stepTimeoutError{step: step.Name, after: o.stepTimeout}
	}
}
