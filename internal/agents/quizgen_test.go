package agents

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/yungbote/studypath-backend/internal/domain"
	"github.com/yungbote/studypath-backend/internal/platform/logger"
	"github.com/yungbote/studypath-backend/internal/prompts"
)

func newTestQuizGen(t *testing.T, llm LLMClient) *QuizGenerator {
	t.Helper()
	t.Setenv("AGENT_QUIZ_RETRIES", "1")
	t.Setenv("AGENT_RETRY_BASE_DELAY", "1ms")
	return NewQuizGenerator(logger.NewNop(), NewEventBus(), llm, prompts.Default())
}

func TestQuizGeneratorRequiresKeyPoints(t *testing.T) {
	g := newTestQuizGen(t, &fakeLLM{responses: []string{"[]"}})
	res := g.Execute(context.Background(), map[string]any{}, testCtx())
	if res.Success || res.Err.Code != CodeInvalidInput {
		t.Fatalf("expected INVALID_INPUT, got success=%v err=%v", res.Success, res.Err)
	}
	res = g.Execute(context.Background(), map[string]any{
		InputKeyPoints:     somePoints(2),
		InputQuestionCount: 0,
	}, testCtx())
	if res.Success || res.Err.Code != CodeInvalidInput {
		t.Fatalf("zero question_count must be rejected, got success=%v", res.Success)
	}
}

func TestQuizGeneratorTopsUpFromKeyPoints(t *testing.T) {
	llm := &fakeLLM{responses: []string{
		`[{"type":"multiple_choice","question":"Which primitive starts a goroutine?","options":["go","run","spawn"],"correct_answer":"go","difficulty":"easy"}]`,
	}}
	g := newTestQuizGen(t, llm)
	res := g.Execute(context.Background(), map[string]any{
		InputKeyPoints:     somePoints(5),
		InputQuestionCount: 4,
	}, testCtx())
	if !res.Success {
		t.Fatalf("expected success, got %v", res.Error)
	}
	questions := res.Data.([]domain.QuizQuestion)
	if len(questions) != 4 {
		t.Fatalf("expected top-up to 4 questions, got %d", len(questions))
	}
	for _, q := range questions[1:] {
		if q.Type != domain.QuestionTrueFalse {
			t.Fatalf("fillers must be true/false, got %s", q.Type)
		}
		if len(q.Options) != 2 || q.Options[0] != "True" || q.Options[1] != "False" {
			t.Fatalf("filler options wrong: %v", q.Options)
		}
	}
}

func TestQuizGeneratorUnusableOutputIsParsingError(t *testing.T) {
	// A multiple-choice question whose answer is not among its options is
	// unusable, leaving nothing to return.
	llm := &fakeLLM{responses: []string{
		`[{"type":"multiple_choice","question":"Broken?","options":["a","b"],"correct_answer":"z"}]`,
	}}
	g := newTestQuizGen(t, llm)
	res := g.Execute(context.Background(), map[string]any{InputKeyPoints: somePoints(1)}, testCtx())
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Err.Code != CodeParsing {
		t.Fatalf("expected PARSING_ERROR, got %s", res.Err.Code)
	}
}

func TestDecodeQuestionsHonorsModelPoints(t *testing.T) {
	qs := decodeQuestions(`[
		{"type":"short_answer","question":"Define channel","answer":"a typed conduit","points":5},
		{"type":"short_answer","question":"Define mutex","answer":"a lock","points":"4"}
	]`)
	if len(qs) != 2 {
		t.Fatalf("expected 2 decoded questions, got %d", len(qs))
	}
	if qs[0].Points != 5 {
		t.Fatalf("numeric points discarded: got %d", qs[0].Points)
	}
	if qs[1].Points != 4 {
		t.Fatalf("string-digit points discarded: got %d", qs[1].Points)
	}
	out := NormalizeQuizQuestions(qs)
	if out[0].Points != 5 {
		t.Fatalf("normalization must keep model-supplied points, got %d", out[0].Points)
	}
}

func TestTopUpQuestionTextIsCapped(t *testing.T) {
	long := strings.Repeat("synchronization detail ", 30)
	points := []domain.KeyPoint{{
		Concept:     "Channels",
		Description: long,
		Importance:  domain.ImportanceHigh,
	}}
	out := topUpQuestions(nil, points, 1)
	if len(out) != 1 {
		t.Fatalf("expected 1 filler, got %d", len(out))
	}
	if n := len([]rune(out[0].Question)); n > questionMaxLen {
		t.Fatalf("filler question exceeds cap: %d runes", n)
	}
	norm := NormalizeQuizQuestions(out)
	if len(norm) != 1 || norm[0].Question != out[0].Question {
		t.Fatalf("filler must already be in normalized form: %+v", norm)
	}
}

func TestNormalizeQuizQuestionsShapeRules(t *testing.T) {
	in := []domain.QuizQuestion{
		{Type: domain.QuestionMultipleChoice, Question: "Pick one", Options: []string{"Alpha", "alpha", "Beta", ""}, CorrectAnswer: "BETA"},
		{Type: domain.QuestionTrueFalse, Question: "Is Go compiled?", CorrectAnswer: "yes"},
		{Type: domain.QuestionFillBlank, Question: "Go was released in ____.", CorrectAnswer: "2009"},
		{Type: domain.QuestionFillBlank, Question: "No blank marker here", CorrectAnswer: "x"},
		{Type: "essay", Question: "Explain interfaces", CorrectAnswer: "implicit satisfaction"},
		{Type: domain.QuestionMultipleChoice, Question: "Too few options", Options: []string{"only"}, CorrectAnswer: "only"},
		{Question: ""},
	}
	out := NormalizeQuizQuestions(in)
	if len(out) != 4 {
		t.Fatalf("expected 4 surviving questions, got %d", len(out))
	}

	mc := out[0]
	if len(mc.Options) != 2 {
		t.Fatalf("duplicate/blank options must be removed, got %v", mc.Options)
	}
	if mc.CorrectAnswer != "Beta" {
		t.Fatalf("correct answer must canonicalize onto an option, got %q", mc.CorrectAnswer)
	}

	tf := out[1]
	if tf.CorrectAnswer != "True" || len(tf.Options) != 2 {
		t.Fatalf("true/false shape wrong: %+v", tf)
	}

	fb := out[2]
	if len(fb.Options) != 0 {
		t.Fatalf("fill_blank must carry no options, got %v", fb.Options)
	}

	sa := out[3]
	if sa.Type != domain.QuestionShortAnswer {
		t.Fatalf("unknown type must coerce to short_answer, got %s", sa.Type)
	}

	for i, q := range out {
		if q.ID == "" {
			t.Fatalf("question %d missing generated id", i)
		}
		if q.Points <= 0 {
			t.Fatalf("question %d missing points", i)
		}
		if !q.Difficulty.Valid() {
			t.Fatalf("question %d has invalid difficulty %q", i, q.Difficulty)
		}
	}
}

func TestNormalizeQuizQuestionsDedupAndIdempotence(t *testing.T) {
	in := []domain.QuizQuestion{
		{Type: domain.QuestionShortAnswer, Question: "What is a goroutine?", CorrectAnswer: "a lightweight thread"},
		{Type: domain.QuestionShortAnswer, Question: "what IS a   goroutine?", CorrectAnswer: "dup"},
	}
	once := NormalizeQuizQuestions(in)
	if len(once) != 1 {
		t.Fatalf("expected near-duplicate removal, got %d", len(once))
	}
	twice := NormalizeQuizQuestions(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalization not idempotent:\nonce=%+v\ntwice=%+v", once, twice)
	}
}

func TestRebalanceDifficultyRelabelsWithoutDiscarding(t *testing.T) {
	questions := make([]domain.QuizQuestion, 10)
	for i := range questions {
		questions[i] = domain.QuizQuestion{
			ID:         "q",
			Type:       domain.QuestionShortAnswer,
			Question:   "q",
			Difficulty: domain.DifficultyHard,
			Points:     3,
		}
	}
	out := rebalanceDifficulty(questions)
	if len(out) != 10 {
		t.Fatalf("rebalance must never discard, got %d", len(out))
	}
	counts := map[domain.Difficulty]int{}
	for _, q := range out {
		counts[q.Difficulty]++
		if q.Points != pointsFor(q.Difficulty) {
			t.Fatalf("points not updated with relabel: %+v", q)
		}
	}
	// 30/50/20 over 10 questions.
	if counts[domain.DifficultyEasy] != 3 || counts[domain.DifficultyMedium] != 5 || counts[domain.DifficultyHard] != 2 {
		t.Fatalf("mix wrong: %v", counts)
	}
}

func TestRebalanceDifficultySmallSetsUntouched(t *testing.T) {
	questions := []domain.QuizQuestion{
		{Difficulty: domain.DifficultyHard},
		{Difficulty: domain.DifficultyHard},
	}
	out := rebalanceDifficulty(questions)
	if out[0].Difficulty != domain.DifficultyHard || out[1].Difficulty != domain.DifficultyHard {
		t.Fatalf("sets under 3 must not be rebalanced: %+v", out)
	}
}
