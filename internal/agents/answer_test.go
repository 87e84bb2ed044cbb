package agents

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
)

func newTestAnswerer(t *testing.T, llm LLMClient) *QuestionAnswerer {
	t.Helper()
	t.Setenv("AGENT_ANSWER_RETRIES", "1")
	t.Setenv("AGENT_RETRY_BASE_DELAY", "1ms")
	return NewQuestionAnswerer(logger.NewNop(), NewEventBus(), llm, prompts.Default())
}

func answerInput(question string) map[string]any {
	return map[string]any{
		InputDocument: domain.DocumentContent{
			Title:   "Go Concurrency",
			Content: "Goroutines are lightweight threads managed by the Go runtime.",
		},
		InputQuestion: question,
	}
}

func TestAnswererValidation(t *testing.T) {
	a := newTestAnswerer(t, &fakeLLM{responses: []string{"x"}})

	res := a.Execute(context.Background(), map[string]any{InputQuestion: "what?"}, testCtx())
	if res.Success || res.Err.Code != CodeInvalidInput {
		t.Fatalf("missing document must be rejected, got success=%v", res.Success)
	}

	res = a.Execute(context.Background(), answerInput("   "), testCtx())
	if res.Success || res.Err.Code != CodeInvalidInput {
		t.Fatalf("blank question must be rejected, got success=%v", res.Success)
	}
}

func TestAnswererStripsEchoArtifacts(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"Question: What is a goroutine?\nAnswer: A goroutine is a lightweight thread.\n{{.Content}}\nIt is cheap to start.",
	}}
	a := newTestAnswerer(t, llm)
	res := a.Execute(context.Background(), answerInput("What is a goroutine?"), testCtx())
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	answer := res.Data.(string)
	if strings.Contains(answer, "Question:") || strings.Contains(answer, "Answer:") {
		t.Fatalf("echo prefixes survived: %q", answer)
	}
	if strings.Contains(answer, "{{") {
		t.Fatalf("template placeholder survived: %q", answer)
	}
	if !strings.Contains(answer, "cheap to start") {
		t.Fatalf("real content lost: %q", answer)
	}
}

func TestAnswererFallbackWhenEmptied(t *testing.T) {
	llm := &fakeLLM{responses: []string{"Question: What is a goroutine?\n{{.HistoryBlock}}"}}
	a := newTestAnswerer(t, llm)
	res := a.Execute(context.Background(), answerInput("What is a goroutine?"), testCtx())
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	if res.Data.(string) != FallbackAnswer {
		t.Fatalf("expected fallback answer, got %q", res.Data)
	}
}

func TestAnswererBoundsHistoryWindow(t *testing.T) {
	t.Setenv("ANSWER_HISTORY_WINDOW", "2")
	llm := &fakeLLM{responses: []string{"Fine."}}
	a := newTestAnswerer(t, llm)

	actx := testCtx()
	for i := 0; i < 6; i++ {
		actx.History = append(actx.History, domain.ConversationTurn{
			Role:    "user",
			Content: fmt.Sprintf("turn %d", i),
		})
	}
	res := a.Execute(context.Background(), answerInput("next question"), actx)
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	if strings.Contains(llm.lastUser, "turn 0") {
		t.Fatal("old turns must be outside the window")
	}
	if !strings.Contains(llm.lastUser, "turn 5") {
		t.Fatal("most recent turn must be inside the window")
	}
}

func TestAnswererUnwrapsJSONEnvelope(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		"```json\n{\"answer\": \"A goroutine is a lightweight thread.\"}\n```",
	}}
	a := newTestAnswerer(t, llm)
	res := a.Execute(context.Background(), answerInput("What is a goroutine?"), testCtx())
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	if got := res.Data.(string); got != "A goroutine is a lightweight thread." {
		t.Fatalf("envelope not unwrapped: %q", got)
	}
}

func TestAnswererCapKeepsValidUTF8(t *testing.T) {
	t.Setenv("ANSWER_MAX_CHARS", "50")
	llm := &fakeLLM{responses: []string{strings.Repeat("並行処理", 40)}}
	a := newTestAnswerer(t, llm)
	res := a.Execute(context.Background(), answerInput("q?"), testCtx())
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	got := res.Data.(string)
	if len(got) > 50 {
		t.Fatalf("answer not capped: len=%d", len(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("cap split a rune: %q", got)
	}
}

func TestAnswererCapsLength(t *testing.T) {
	t.Setenv("ANSWER_MAX_CHARS", "50")
	llm := &fakeLLM{responses: []string{strings.Repeat("long answer ", 100)}}
	a := newTestAnswerer(t, llm)
	res := a.Execute(context.Background(), answerInput("q?"), testCtx())
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	if got := len(res.Data.(string)); got > 50 {
		t.Fatalf("answer not capped: len=%d", got)
	}
}

func TestFormatHistory(t *testing.T) {
	turns := []domain.ConversationTurn{
		{Role: "user", Content: "hi"},
		{Content: "no role"},
		{Role: "assistant", Content: "hello"},
	}
	got := formatHistory(turns)
	want := "user: hi\nuser: no role\nassistant: hello"
	if got != want {
		t.Fatalf("formatHistory: want=%q got=%q", want, got)
	}
	if formatHistory(nil) != "" {
		t.Fatal("empty history must render empty")
	}
}
