// Package agents wraps each model-backed capability in a uniform execution
// contract: input validation, per-attempt timeout, bounded retry with linear
// backoff, a three-state status machine, and lifecycle events. Backends are
// injected by constructor; there is no process-wide registry.
package agents

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
)

// Status is the agent state machine: idle -> running -> idle on success,
// idle -> running -> error after exhausted retries. A later Execute moves an
// errored agent back through running.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

// LLMClient is the text-generation collaborator. It may be slow and may
// return text that ignores the requested format; no other contract assumed.
type LLMClient interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// DocumentLoader is the document-fetch collaborator.
type DocumentLoader interface {
	Load(ctx context.Context, url string) (title, rawText string, err error)
}

// Result is the only channel by which an agent reports an outcome. Execute
// never panics past its own boundary.
type Result struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Err     *AgentError `json:"-"`
	Error   string      `json:"error,omitempty"`
	Meta    ResultMeta  `json:"metadata"`
}

type ResultMeta struct {
	Attempts      int           `json:"attempts"`
	ExecutionTime time.Duration `json:"execution_time"`
}

func failure(err *AgentError, attempts int, elapsed time.Duration) Result {
	return Result{
		Success: false,
		Err:     err,
		Error:   err.Error(),
		Meta:    ResultMeta{Attempts: attempts, ExecutionTime: elapsed},
	}
}

// Agent is one model-backed capability behind the execution contract.
type Agent interface {
	Name() string
	Status() Status
	ValidateInput(input map[string]any) error
	Execute(ctx context.Context, input map[string]any, actx *domain.AgentContext) Result
}

// Config holds the retry/timeout budget for one capability. MaxRetries is
// the total attempt count: a value of 3 performs exactly three attempts.
type Config struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	return c
}

type runFunc func(ctx context.Context, input map[string]any, actx *domain.AgentContext) (any, error)

// BaseAgent carries the shared contract; concrete agents embed it and supply
// their validation and capability functions.
type BaseAgent struct {
	name   string
	cfg    Config
	log    *logger.Logger
	events *EventBus

	validate func(input map[string]any) error
	run      runFunc

	mu     sync.Mutex
	status Status
}

func newBase(name string, cfg Config, log *logger.Logger, events *EventBus, validate func(map[string]any) error, run runFunc) *BaseAgent {
	return &BaseAgent{
		name:     name,
		cfg:      cfg.withDefaults(),
		log:      log.With("agent", name),
		events:   events,
		validate: validate,
		run:      run,
		status:   StatusIdle,
	}
}

func (a *BaseAgent) Name() string { return a.name }

func (a *BaseAgent) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *BaseAgent) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

func (a *BaseAgent) ValidateInput(input map[string]any) error {
	return a.validate(input)
}

// Execute runs the capability under the contract. Invalid input fails fast
// with no retry and no event. Otherwise each attempt races the configured
// timeout; failed attempts back off linearly (attempt x BaseDelay) until the
// retry budget is spent.
func (a *BaseAgent) Execute(ctx context.Context, input map[string]any, actx *domain.AgentContext) Result {
	start := time.Now()
	if err := a.validate(input); err != nil {
		ae := Classify(err)
		if ae.Code != CodeInvalidInput {
			ae = Wrap(CodeInvalidInput, "invalid input", err)
		}
		return failure(ae, 0, time.Since(start))
	}

	a.setStatus(StatusRunning)
	a.events.publish(Event{Agent: a.name, Type: EventStarted, At: time.Now()})

	var lastErr *AgentError
	attempts := 0
	for attempt := 1; attempt <= a.cfg.MaxRetries; attempt++ {
		attempts = attempt
		out, err := a.attempt(ctx, input, actx)
		if err == nil {
			a.setStatus(StatusIdle)
			a.events.publish(Event{Agent: a.name, Type: EventCompleted, At: time.Now()})
			return Result{
				Success: true,
				Data:    out,
				Meta:    ResultMeta{Attempts: attempt, ExecutionTime: time.Since(start)},
			}
		}
		lastErr = Classify(err)
		a.log.Warn("attempt failed",
			"attempt", attempt,
			"max_retries", a.cfg.MaxRetries,
			"code", string(lastErr.Code),
			"error", lastErr.Message,
		)
		if !lastErr.Retryable() || attempt == a.cfg.MaxRetries {
			break
		}
		select {
		case <-time.After(time.Duration(attempt) * a.cfg.BaseDelay):
		case <-ctx.Done():
			lastErr = Classify(ctx.Err())
			attempt = a.cfg.MaxRetries // stop retrying, caller is gone
		}
	}

	a.setStatus(StatusError)
	a.events.publish(Event{Agent: a.name, Type: EventError, Error: lastErr.Error(), At: time.Now()})
	return failure(lastErr, attempts, time.Since(start))
}

// attempt races the capability against the per-attempt timeout. A timed-out
// attempt is abandoned, not cancelled at the transport level: the buffered
// channel lets the late goroutine finish and its result be discarded.
func (a *BaseAgent) attempt(ctx context.Context, input map[string]any, actx *domain.AgentContext) (any, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	type outcome struct {
		out any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: Errf(CodeUnknown, "%s panicked: %v", a.name, r)}
			}
		}()
		out, err := a.run(attemptCtx, input, actx)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		return o.out, o.err
	case <-attemptCtx.Done():
		return nil, Errf(CodeTimeout, "%s did not complete within %s", a.name, a.cfg.Timeout)
	}
}
