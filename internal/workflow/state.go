// Package workflow sequences agent invocations into pipelines: a
// fixed-pipeline orchestrator for the named workflow types and a
// dependency/condition-graph scheduler for arbitrary step graphs, plus a
// bounded-concurrency helper for independent runs.
package workflow

import "time"

// Well-known state field names shared by steps and callers.
const (
	KeyURL          = "url"
	KeyLevel        = "level"
	KeyQuestion     = "question"
	KeyHistory      = "history"
	KeyMaxPoints    = "max_points"
	KeyQuizCount    = "quiz_count"
	KeySkipQuiz     = "skip_quiz"
	KeyDocument     = "document"
	KeyKeyPoints    = "key_points"
	KeyLearningPath = "learning_path"
	KeyQuiz         = "quiz"
	KeyAnswer       = "answer"
	KeyErrors       = "errors"
	KeyCurrentStep  = "current_step"
	KeyCompleted    = "completed"
	KeyStatus       = "status"
)

// Terminal run statuses recorded under KeyStatus.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusStalled   = "stalled"
)

// StepError records one failed step without aborting the accumulated result.
type StepError struct {
	Step      string    `json:"step"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the accumulating field map threaded through a workflow. Steps
// receive a snapshot and return a partial map; the scheduler owns the merge,
// so no two steps ever mutate the same instance.
type State map[string]any

func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	if errs, ok := s[KeyErrors].([]StepError); ok {
		cp := make([]StepError, len(errs))
		copy(cp, errs)
		out[KeyErrors] = cp
	}
	return out
}

// Merge returns a new state with partial applied on top of s. Step errors
// accumulate instead of overwriting.
func (s State) Merge(partial State) State {
	out := s.Clone()
	for k, v := range partial {
		if k == KeyErrors {
			if errs, ok := v.([]StepError); ok {
				out[KeyErrors] = append(out.Errors(), errs...)
			}
			continue
		}
		out[k] = v
	}
	return out
}

func (s State) Errors() []StepError {
	errs, _ := s[KeyErrors].([]StepError)
	return errs
}

func (s State) withError(step string, err error) State {
	out := s.Clone()
	out[KeyErrors] = append(out.Errors(), StepError{
		Step:      step,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
	return out
}

// finalize stamps the terminal status: completed when nothing failed,
// partial when some steps recorded errors.
func (s State) finalize() State {
	out := s.Clone()
	if len(out.Errors()) == 0 {
		out[KeyCompleted] = true
		out[KeyStatus] = StatusCompleted
	} else {
		out[KeyCompleted] = false
		out[KeyStatus] = StatusPartial
	}
	return out
}
