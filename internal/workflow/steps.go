package workflow

import (
	"context"

	"github.com/yungbote/studypath-backend/internal/agents"
	"github.com/yungbote/studypath-backend/internal/domain"
)

// Step IDs used by both orchestration styles.
const (
	StepParse     = "parse_document"
	StepKeyPoints = "extract_keypoints"
	StepPath      = "plan_learning_path"
	StepQuiz      = "generate_quiz"
	StepAnswer    = "answer_question"
)

func stateString(st State, key string) string {
	s, _ := st[key].(string)
	return s
}

func stateInt(st State, key string) (int, bool) {
	switch v := st[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// resultOrErr converts an agent result into the step contract: partial state
// on success, classified error otherwise.
func resultOrErr(res agents.Result, key string) (State, error) {
	if !res.Success {
		return nil, res.Err
	}
	return State{key: res.Data}, nil
}

func (e *Engine) runParse(actx *domain.AgentContext) func(context.Context, State) (State, error) {
	return func(ctx context.Context, st State) (State, error) {
		res := e.parser.Execute(ctx, map[string]any{
			agents.InputURL:             stateString(st, KeyURL),
			agents.InputIncludeMetadata: true,
		}, actx)
		return resultOrErr(res, KeyDocument)
	}
}

func (e *Engine) runKeyPoints(actx *domain.AgentContext) func(context.Context, State) (State, error) {
	return func(ctx context.Context, st State) (State, error) {
		doc, ok := st[KeyDocument].(domain.DocumentContent)
		if !ok {
			return nil, agents.Errf(agents.CodeInvalidInput, "document missing from state")
		}
		input := map[string]any{
			agents.InputContent: doc.Content,
			agents.InputTitle:   doc.Title,
		}
		if max, ok := stateInt(st, KeyMaxPoints); ok {
			input[agents.InputMaxPoints] = max
		}
		res := e.extractor.Execute(ctx, input, actx)
		return resultOrErr(res, KeyKeyPoints)
	}
}

func (e *Engine) runPath(actx *domain.AgentContext) func(context.Context, State) (State, error) {
	return func(ctx context.Context, st State) (State, error) {
		points, ok := st[KeyKeyPoints].([]domain.KeyPoint)
		if !ok {
			return nil, agents.Errf(agents.CodeInvalidInput, "key points missing from state")
		}
		res := e.planner.Execute(ctx, map[string]any{
			agents.InputKeyPoints: points,
			agents.InputLevel:     stateString(st, KeyLevel),
		}, actx)
		return resultOrErr(res, KeyLearningPath)
	}
}

func (e *Engine) runQuiz(actx *domain.AgentContext) func(context.Context, State) (State, error) {
	return func(ctx context.Context, st State) (State, error) {
		points, ok := st[KeyKeyPoints].([]domain.KeyPoint)
		if !ok {
			return nil, agents.Errf(agents.CodeInvalidInput, "key points missing from state")
		}
		input := map[string]any{agents.InputKeyPoints: points}
		if doc, ok := st[KeyDocument].(domain.DocumentContent); ok {
			input[agents.InputContent] = doc.Content
		}
		if count, ok := stateInt(st, KeyQuizCount); ok {
			input[agents.InputQuestionCount] = count
		}
		res := e.quiz.Execute(ctx, input, actx)
		return resultOrErr(res, KeyQuiz)
	}
}

func (e *Engine) runAnswer(actx *domain.AgentContext) func(context.Context, State) (State, error) {
	return func(ctx context.Context, st State) (State, error) {
		doc, ok := st[KeyDocument].(domain.DocumentContent)
		if !ok {
			return nil, agents.Errf(agents.CodeInvalidInput, "document missing from state")
		}
		res := e.answerer.Execute(ctx, map[string]any{
			agents.InputDocument: doc,
			agents.InputQuestion: stateString(st, KeyQuestion),
		}, actx)
		return resultOrErr(res, KeyAnswer)
	}
}

func skipQuiz(st State) bool {
	skip, _ := st[KeySkipQuiz].(bool)
	return skip
}
