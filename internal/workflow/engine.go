package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/studypath-backend/internal/agents"
	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
)

// WorkflowType names one of the canned pipelines.
type WorkflowType string

const (
	WorkflowDocumentAnalysis WorkflowType = "document_analysis"
	WorkflowLearningPath     WorkflowType = "learning_path"
	WorkflowQuiz             WorkflowType = "quiz"
	WorkflowQA               WorkflowType = "qa"
	WorkflowFullPipeline     WorkflowType = "full_pipeline"
)

// Engine is the core entry point consumed by the web layer: it owns one
// instance of each agent, the two orchestration styles, and advisory
// cancellation of in-flight runs.
type Engine struct {
	log    *logger.Logger
	events *agents.EventBus

	parser    *agents.DocumentParser
	extractor *agents.KeyPointExtractor
	planner   *agents.LearningPathPlanner
	quiz      *agents.QuizGenerator
	answerer  *agents.QuestionAnswerer

	orch  *Orchestrator
	sched *Scheduler

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func NewEngine(log *logger.Logger, llm agents.LLMClient, loader agents.DocumentLoader, reg *prompts.Registry) *Engine {
	events := agents.NewEventBus()
	return &Engine{
		log:       log.With("component", "WorkflowEngine"),
		events:    events,
		parser:    agents.NewDocumentParser(log, events, loader),
		extractor: agents.NewKeyPointExtractor(log, events, llm, reg),
		planner:   agents.NewLearningPathPlanner(log, events, llm, reg),
		quiz:      agents.NewQuizGenerator(log, events, llm, reg),
		answerer:  agents.NewQuestionAnswerer(log, events, llm, reg),
		orch:      NewOrchestrator(log),
		sched:     NewScheduler(log),
		active:    make(map[string]context.CancelFunc),
	}
}

// Events exposes the lifecycle bus for subscription before any run starts.
func (e *Engine) Events() *agents.EventBus { return e.events }

// AgentsHealth reports, per agent, whether the instance is currently idle.
func (e *Engine) AgentsHealth() map[string]bool {
	out := make(map[string]bool, 5)
	for _, a := range e.allAgents() {
		out[a.Name()] = a.Status() == agents.StatusIdle
	}
	return out
}

func (e *Engine) allAgents() []agents.Agent {
	return []agents.Agent{e.parser, e.extractor, e.planner, e.quiz, e.answerer}
}

// RunWorkflow executes a named pipeline to completion and returns the final
// accumulated state. The error return is reserved for programmer mistakes
// (unknown type, missing required input); capability failures are recorded
// inside the state.
func (e *Engine) RunWorkflow(ctx context.Context, wt WorkflowType, inputs map[string]any) (State, error) {
	initial, actx, err := e.prepare(wt, inputs)
	if err != nil {
		return nil, err
	}
	pipeline, err := e.pipeline(wt, actx)
	if err != nil {
		return nil, err
	}

	ctx, done := e.track(ctx, actx.SessionID)
	defer done()

	e.log.Info("workflow started", "type", string(wt), "session_id", actx.SessionID)
	final := e.orch.Execute(ctx, pipeline, initial)
	e.log.Info("workflow finished",
		"type", string(wt),
		"session_id", actx.SessionID,
		"status", final[KeyStatus],
		"errors", len(final.Errors()),
	)
	return final, nil
}

// StreamWorkflow runs the same named workflow through the graph scheduler
// and yields a state snapshot after every completed step, ending with the
// final state. The sequence is finite and non-restartable.
func (e *Engine) StreamWorkflow(ctx context.Context, wt WorkflowType, inputs map[string]any) (<-chan State, error) {
	initial, actx, err := e.prepare(wt, inputs)
	if err != nil {
		return nil, err
	}
	steps, err := e.graph(wt, actx, initial)
	if err != nil {
		return nil, err
	}

	ctx, done := e.track(ctx, actx.SessionID)
	snapshots := e.sched.Stream(ctx, steps, initial)

	out := make(chan State)
	go func() {
		defer close(out)
		defer done()
		for st := range snapshots {
			select {
			case out <- st:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Cancel requests best-effort cancellation of an in-flight run. The
// acknowledgment is advisory: in-flight backend calls are abandoned, not
// aborted at the transport level.
func (e *Engine) Cancel(sessionID string) bool {
	e.mu.Lock()
	cancel, ok := e.active[sessionID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// BatchRequest is one unit of a bounded-concurrency batch run.
type BatchRequest struct {
	Type   WorkflowType
	Inputs map[string]any
}

type BatchResult struct {
	State State
	Err   error
}

// RunBatch executes independent workflow requests with a concurrency
// ceiling (default 3).
func (e *Engine) RunBatch(ctx context.Context, reqs []BatchRequest, limit int64) []BatchResult {
	if limit < 1 {
		limit = 3
	}
	results := make([]BatchResult, len(reqs))
	tasks := make([]func(context.Context) error, len(reqs))
	for i, req := range reqs {
		i, req := i, req
		tasks[i] = func(ctx context.Context) error {
			st, err := e.RunWorkflow(ctx, req.Type, req.Inputs)
			results[i] = BatchResult{State: st, Err: err}
			return err
		}
	}
	_ = RunLimited(ctx, limit, tasks)
	return results
}

func (e *Engine) track(ctx context.Context, sessionID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.active[sessionID] = cancel
	e.mu.Unlock()
	return ctx, func() {
		cancel()
		e.mu.Lock()
		delete(e.active, sessionID)
		e.mu.Unlock()
	}
}

// prepare validates the required initial inputs and builds the initial
// state plus the shared per-request context.
func (e *Engine) prepare(wt WorkflowType, inputs map[string]any) (State, *domain.AgentContext, error) {
	switch wt {
	case WorkflowDocumentAnalysis, WorkflowLearningPath, WorkflowQuiz, WorkflowQA, WorkflowFullPipeline:
	default:
		return nil, nil, fmt.Errorf("unknown workflow type %q", wt)
	}

	initial := make(State, len(inputs))
	for k, v := range inputs {
		initial[k] = v
	}
	if strings.TrimSpace(stateString(initial, KeyURL)) == "" {
		return nil, nil, fmt.Errorf("workflow %s requires input %q", wt, KeyURL)
	}
	if wt == WorkflowQA && strings.TrimSpace(stateString(initial, KeyQuestion)) == "" {
		return nil, nil, fmt.Errorf("workflow %s requires input %q", wt, KeyQuestion)
	}

	history, _ := initial[KeyHistory].([]domain.ConversationTurn)
	actx := &domain.AgentContext{
		SessionID: uuid.NewString(),
		UserLevel: domain.UserLevel(stateString(initial, KeyLevel)),
		History:   history,
		Timestamp: time.Now(),
	}
	return initial, actx, nil
}

// pipeline maps a workflow type to its fixed ordered step list.
func (e *Engine) pipeline(wt WorkflowType, actx *domain.AgentContext) ([]PipeStep, error) {
	parse := PipeStep{Name: StepParse, Required: true, Run: e.runParse(actx)}
	keypoints := PipeStep{Name: StepKeyPoints, Required: true, Run: e.runKeyPoints(actx)}
	path := PipeStep{Name: StepPath, Required: false, Run: e.runPath(actx)}
	quiz := PipeStep{Name: StepQuiz, Required: false, Skip: skipQuiz, Run: e.runQuiz(actx)}
	answer := PipeStep{Name: StepAnswer, Required: false, Run: e.runAnswer(actx)}

	switch wt {
	case WorkflowDocumentAnalysis:
		return []PipeStep{parse, keypoints}, nil
	case WorkflowLearningPath:
		return []PipeStep{parse, keypoints, path}, nil
	case WorkflowQuiz:
		return []PipeStep{parse, keypoints, quiz}, nil
	case WorkflowQA:
		return []PipeStep{parse, answer}, nil
	case WorkflowFullPipeline:
		answer.Skip = func(st State) bool {
			return strings.TrimSpace(stateString(st, KeyQuestion)) == ""
		}
		return []PipeStep{parse, keypoints, path, quiz, answer}, nil
	}
	return nil, fmt.Errorf("unknown workflow type %q", wt)
}

// graph expresses the same workflows as dependency graphs for the scheduler.
// The skippable quiz step is resolved at build time so a skip option cannot
// read as a stall.
func (e *Engine) graph(wt WorkflowType, actx *domain.AgentContext, initial State) ([]Step, error) {
	parse := Step{ID: StepParse, Run: e.runParse(actx)}
	keypoints := Step{ID: StepKeyPoints, Dependencies: []string{StepParse}, Run: e.runKeyPoints(actx)}
	path := Step{ID: StepPath, Dependencies: []string{StepKeyPoints}, Run: e.runPath(actx)}
	quiz := Step{ID: StepQuiz, Dependencies: []string{StepKeyPoints}, Run: e.runQuiz(actx)}
	answer := Step{ID: StepAnswer, Dependencies: []string{StepParse}, Run: e.runAnswer(actx)}

	switch wt {
	case WorkflowDocumentAnalysis:
		return []Step{parse, keypoints}, nil
	case WorkflowLearningPath:
		return []Step{parse, keypoints, path}, nil
	case WorkflowQuiz:
		return []Step{parse, keypoints, quiz}, nil
	case WorkflowQA:
		return []Step{parse, answer}, nil
	case WorkflowFullPipeline:
		steps := []Step{parse, keypoints, path}
		if !skipQuiz(initial) {
			steps = append(steps, quiz)
		}
		if strings.TrimSpace(stateString(initial, KeyQuestion)) != "" {
			steps = append(steps, answer)
		}
		return steps, nil
	}
	return nil, fmt.Errorf("unknown workflow type %q", wt)
}
