package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/envutil"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
	"github.com/yungbote/studypath-backend/internal/structured"
)

const (
	InputDocument = "document"
	InputQuestion = "question"

	// FallbackAnswer replaces an answer that post-processing emptied out.
	FallbackAnswer = "I'm sorry, I couldn't find an answer to that in the document. Could you rephrase the question?"
)

// QuestionAnswerer answers free-form questions about one parsed document,
// grounded by a bounded window of recent conversation turns.
type QuestionAnswerer struct {
	*BaseAgent
	llm           LLMClient
	reg           *prompts.Registry
	budget        int
	historyWindow int
	maxAnswerLen  int
}

func NewQuestionAnswerer(log *logger.Logger, events *EventBus, llm LLMClient, reg *prompts.Registry) *QuestionAnswerer {
	a := &QuestionAnswerer{
		llm:           llm,
		reg:           reg,
		budget:        envutil.Int("ANSWER_CONTENT_BUDGET", 10000),
		historyWindow: envutil.Int("ANSWER_HISTORY_WINDOW", 10),
		maxAnswerLen:  envutil.Int("ANSWER_MAX_CHARS", 2000),
	}
	cfg := Config{
		Timeout:    envutil.Dur("AGENT_ANSWER_TIMEOUT", 15*time.Second),
		MaxRetries: envutil.Int("AGENT_ANSWER_RETRIES", 2),
		BaseDelay:  envutil.Dur("AGENT_RETRY_BASE_DELAY", time.Second),
	}
	a.BaseAgent = newBase("question_answerer", cfg, log, events, a.validateInput, a.answer)
	return a
}

func (a *QuestionAnswerer) validateInput(input map[string]any) error {
	doc, ok := input[InputDocument].(domain.DocumentContent)
	if !ok || strings.TrimSpace(doc.Content) == "" {
		return Errf(CodeInvalidInput, "document with content is required")
	}
	q, _ := input[InputQuestion].(string)
	if strings.TrimSpace(q) == "" {
		return Errf(CodeInvalidInput, "question is required")
	}
	return nil
}

func (a *QuestionAnswerer) answer(ctx context.Context, input map[string]any, actx *domain.AgentContext) (any, error) {
	doc := input[InputDocument].(domain.DocumentContent)
	question := strings.TrimSpace(input[InputQuestion].(string))

	var history []domain.ConversationTurn
	if actx != nil {
		history = lastTurns(actx.History, a.historyWindow)
	}

	tpl := a.reg.MustGet(prompts.PromptAnswerQuestion)
	in := prompts.Input{
		Title:        doc.Title,
		Content:      truncateMiddle(doc.Content, a.budget, 0.7),
		HistoryBlock: formatHistory(history),
		Question:     question,
	}
	resp, err := a.llm.Generate(ctx, tpl.System(in), tpl.User(in))
	if err != nil {
		ae := Classify(err)
		if ae.Code == CodeUnknown {
			ae = Wrap(CodeLLM, "generate answer", err)
		}
		return nil, ae
	}

	answer := cleanAnswer(resp, question)
	if answer == "" {
		answer = FallbackAnswer
	}
	answer = capBytes(answer, a.maxAnswerLen)
	return answer, nil
}

func formatHistory(turns []domain.ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var b strings.Builder
	for _, t := range turns {
		role := t.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, structured.CleanText(t.Content, questionMaxLen))
	}
	return strings.TrimSpace(b.String())
}

// cleanAnswer strips template echo artifacts: a JSON envelope around the
// answer, role prefixes, an echoed copy of the question, and unresolved
// {{...}} placeholders.
func cleanAnswer(resp, question string) string {
	if t := strings.TrimSpace(resp); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "```") {
		if obj, ok := structured.DecodeObject(t); ok {
			if s := structured.Str(obj, "answer", "response", "text"); s != "" {
				resp = s
			}
		}
	}
	lines := strings.Split(resp, "\n")
	kept := lines[:0]
	qKey := normalizeKey(question)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range []string{"Answer:", "A:", "assistant:", "Assistant:"} {
			if strings.HasPrefix(trimmed, prefix) {
				trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, prefix))
			}
		}
		if trimmed == "" {
			kept = append(kept, "")
			continue
		}
		if strings.HasPrefix(trimmed, "Question:") || normalizeKey(trimmed) == qKey {
			continue
		}
		if strings.Contains(trimmed, "{{") && strings.Contains(trimmed, "}}") {
			continue
		}
		kept = append(kept, trimmed)
	}
	out := strings.TrimSpace(strings.Join(kept, "\n"))
	return out
}
